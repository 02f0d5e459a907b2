package model

// CardStatus is the availability state of a card for one user.
// Wire and storage values are identical.
type CardStatus string

const (
	StatusOpened   CardStatus = "OPENED"
	StatusClosed   CardStatus = "CLOSED"
	StatusFinished CardStatus = "FINISHED"
)

// ParseCardStatus validates a wire value.
func ParseCardStatus(s string) (CardStatus, bool) {
	switch CardStatus(s) {
	case StatusOpened, StatusClosed, StatusFinished:
		return CardStatus(s), true
	}
	return "", false
}

// FinishedClassName marks a finished card's class in views.
const FinishedClassName = string(StatusFinished)
