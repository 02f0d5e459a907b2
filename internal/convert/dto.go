// Package convert maps domain models to JSON wire DTOs and decodes request bodies.
package convert

import (
	"encoding/json"
	"time"
)

// --- server -> client ---

type PositionDTO struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type CardDataDTO struct {
	Label   string          `json:"label"`
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
	Status  string          `json:"status"`
}

type CardMetaDTO struct {
	CourseID  int64     `json:"courseId"`
	ParentID  *string   `json:"parentId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CardDTO is a card as the viewer sees it.
type CardDTO struct {
	ID        string      `json:"id"`
	Position  PositionDTO `json:"position"`
	Data      CardDataDTO `json:"data"`
	ClassName string      `json:"className,omitempty"`
	Meta      CardMetaDTO `json:"meta"`
}

type RelationDTO struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// CardsPayloadDTO is the course canvas: every card plus the edges between them.
type CardsPayloadDTO struct {
	Initial   []CardDTO     `json:"initial"`
	Relations []RelationDTO `json:"relations"`
}

type StatisticDTO struct {
	AllCards        int `json:"allCards"`
	CardsPassed     int `json:"cardsPassed"`
	ProgressPercent int `json:"progressPercent"`
}

type UserDTO struct {
	ID         string        `json:"id"`
	Email      string        `json:"email"`
	Phone      string        `json:"phone,omitempty"`
	FirstName  string        `json:"firstName"`
	LastName   string        `json:"lastName"`
	Patronymic string        `json:"patronymic,omitempty"`
	FullName   string        `json:"fullname"`
	Role       string        `json:"role"`
	BranchID   *int64        `json:"branchId"`
	PostID     *int64        `json:"postId"`
	CourseID   *int64        `json:"courseId"`
	CreatedAt  time.Time     `json:"createdAt"`
	LastSeenAt *time.Time    `json:"lastEntry"`
	Statistic  *StatisticDTO `json:"statistic,omitempty"`
}

// NamedDTO serves branches, posts and courses.
type NamedDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type TokensDTO struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         *UserDTO  `json:"user,omitempty"`
}

// ErrorDTO is the body of every failed response.
type ErrorDTO struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// --- client -> server ---

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateUserRequest struct {
	FullName string `json:"fullname"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
	BranchID *int64 `json:"branchId"`
	PostID   *int64 `json:"postId"`
	CourseID *int64 `json:"courseId"`
}

type UpdateUserRequest struct {
	FullName *string `json:"fullname"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Role     *string `json:"role"`
	BranchID *int64  `json:"branchId"`
	PostID   *int64  `json:"postId"`
}

type UserFilterRequest struct {
	Name     string  `json:"name"`
	Posts    []int64 `json:"posts"`
	Branches []int64 `json:"branches"`
}

type EnrollRequest struct {
	CourseID int64 `json:"courseId"`
}

type NameRequest struct {
	Name string `json:"name"`
}

type CardDataRequest struct {
	Label   *string         `json:"label"`
	Type    *string         `json:"type"`
	Content json.RawMessage `json:"content"`
}

// CardRequest creates or patches a card. ParentID is honoured on create only.
type CardRequest struct {
	Position *PositionDTO    `json:"position"`
	Data     CardDataRequest `json:"data"`
	ParentID *string         `json:"parentId"`
}

type StatusRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type RelationRequest struct {
	ID     *string `json:"id"`
	Source string  `json:"source"`
	Target string  `json:"target"`
}
