package convert

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/course-keeper/internal/errs"
	"github.com/and161185/course-keeper/internal/model"
	"github.com/and161185/course-keeper/internal/service"
)

// --- Cards ---

// ToCard converts a viewer's card view.
func ToCard(v model.CardView) CardDTO {
	return CardDTO{
		ID:       v.ID,
		Position: PositionDTO{X: v.Position.X, Y: v.Position.Y},
		Data: CardDataDTO{
			Label:   v.Label,
			Type:    v.Type,
			Content: v.Content,
			Status:  string(v.Status),
		},
		ClassName: v.ClassName,
		Meta: CardMetaDTO{
			CourseID:  v.CourseID,
			ParentID:  v.ParentID,
			CreatedAt: v.CreatedAt,
			UpdatedAt: v.UpdatedAt,
		},
	}
}

// ToCards converts views preserving order.
func ToCards(vs []model.CardView) []CardDTO {
	out := make([]CardDTO, 0, len(vs))
	for _, v := range vs {
		out = append(out, ToCard(v))
	}
	return out
}

// ToCardsPayload builds the canvas payload.
func ToCardsPayload(vs []model.CardView, rels []model.Relation) CardsPayloadDTO {
	return CardsPayloadDTO{Initial: ToCards(vs), Relations: ToRelations(rels)}
}

// ToNewCard maps a create request to service input.
func ToNewCard(r CardRequest) service.NewCard {
	in := service.NewCard{ParentID: r.ParentID, Content: compactJSON(r.Data.Content)}
	if r.Position != nil {
		in.Position = model.Position{X: r.Position.X, Y: r.Position.Y}
	}
	if r.Data.Label != nil {
		in.Label = *r.Data.Label
	}
	if r.Data.Type != nil {
		in.Type = *r.Data.Type
	}
	return in
}

// ToCardPatch maps a patch request; absent fields stay untouched.
func ToCardPatch(r CardRequest) model.CardPatch {
	p := model.CardPatch{Label: r.Data.Label, Type: r.Data.Type, Content: compactJSON(r.Data.Content)}
	if r.Position != nil {
		p.Position = &model.Position{X: r.Position.X, Y: r.Position.Y}
	}
	return p
}

// compactJSON drops an explicit null so it reads as "not provided".
func compactJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}

// ToStatusChange parses a status move; unknown tokens fail with invalid_card_status.
func ToStatusChange(r StatusRequest) (from, to model.CardStatus, err error) {
	f, ok := model.ParseCardStatus(r.From)
	if !ok {
		return "", "", errs.ErrInvalidStatus.Withf("invalid from status %q", r.From)
	}
	t, ok := model.ParseCardStatus(r.To)
	if !ok {
		return "", "", errs.ErrInvalidStatus.Withf("invalid to status %q", r.To)
	}
	return f, t, nil
}

// --- Relations ---

// ToRelation converts a ledger entry.
func ToRelation(r model.Relation) RelationDTO {
	return RelationDTO{ID: r.ID.String(), Source: r.ParentID, Target: r.ChildID}
}

// ToRelations converts ledger entries preserving order.
func ToRelations(rs []model.Relation) []RelationDTO {
	out := make([]RelationDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, ToRelation(r))
	}
	return out
}

// ToRelationInput validates the optional client id.
func ToRelationInput(r RelationRequest) (service.RelationInput, error) {
	in := service.RelationInput{SourceID: strings.TrimSpace(r.Source), TargetID: strings.TrimSpace(r.Target)}
	if in.SourceID == "" || in.TargetID == "" {
		return service.RelationInput{}, errs.ErrInvalidInput.Withf("source and target are required")
	}
	if r.ID != nil {
		id, err := uuid.FromString(*r.ID)
		if err != nil {
			return service.RelationInput{}, errs.ErrInvalidInput.Withf("invalid relation id %q", *r.ID)
		}
		in.ID = &id
	}
	return in, nil
}

// --- Users ---

// ToStatistic converts progress.
func ToStatistic(s model.Statistic) StatisticDTO {
	return StatisticDTO{AllCards: s.AllCards, CardsPassed: s.CardsPassed, ProgressPercent: s.ProgressPercent}
}

// ToUser converts a user; credentials never leave the server.
func ToUser(u model.User, st *model.Statistic) UserDTO {
	out := UserDTO{
		ID:         u.ID.String(),
		Email:      u.Email,
		Phone:      u.Phone,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Patronymic: u.Patronymic,
		FullName:   u.FullName(),
		Role:       string(u.Role),
		BranchID:   u.BranchID,
		PostID:     u.PostID,
		CourseID:   u.CourseID,
		CreatedAt:  u.CreatedAt,
		LastSeenAt: u.LastSeenAt,
	}
	if st != nil {
		s := ToStatistic(*st)
		out.Statistic = &s
	}
	return out
}

// ToUsers converts users without statistics.
func ToUsers(us []model.User) []UserDTO {
	out := make([]UserDTO, 0, len(us))
	for _, u := range us {
		out = append(out, ToUser(u, nil))
	}
	return out
}

// ToNewUser maps a create request to service input.
func ToNewUser(r CreateUserRequest) service.NewUser {
	return service.NewUser{
		Email:    r.Email,
		Password: r.Password,
		FullName: r.FullName,
		Phone:    r.Phone,
		Role:     model.Role(strings.ToUpper(strings.TrimSpace(r.Role))),
		BranchID: r.BranchID,
		PostID:   r.PostID,
		CourseID: r.CourseID,
	}
}

// ToUserPatch maps an update request to service input.
func ToUserPatch(r UpdateUserRequest) service.UserPatch {
	p := service.UserPatch{
		Email:    r.Email,
		Phone:    r.Phone,
		FullName: r.FullName,
		BranchID: r.BranchID,
		PostID:   r.PostID,
	}
	if r.Role != nil {
		role := model.Role(strings.ToUpper(strings.TrimSpace(*r.Role)))
		p.Role = &role
	}
	return p
}

// ToUserFilter maps a filter request.
func ToUserFilter(r UserFilterRequest) model.UserFilter {
	return model.UserFilter{BranchIDs: r.Branches, PostIDs: r.Posts, Name: strings.TrimSpace(r.Name)}
}

// ToTokens converts issued tokens, optionally with the signed-in user.
func ToTokens(t model.Tokens, u *model.User) TokensDTO {
	out := TokensDTO{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, ExpiresAt: t.ExpiresAt}
	if u != nil {
		dto := ToUser(*u, nil)
		out.User = &dto
	}
	return out
}

// --- Directories ---

// ToNamed converts a branch, post or course.
func ToNamed[T model.Branch | model.Post | model.Course](v T) NamedDTO {
	return NamedDTO(v)
}

// ToNamedList converts a directory listing.
func ToNamedList[T model.Branch | model.Post | model.Course](vs []T) []NamedDTO {
	out := make([]NamedDTO, 0, len(vs))
	for _, v := range vs {
		out = append(out, ToNamed(v))
	}
	return out
}
