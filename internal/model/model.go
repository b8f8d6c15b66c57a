package model

import (
	"context"
	"strings"
	"time"
)

// UserRole represents a staff member's access level.
type UserRole string

const (
	// UserRoleTeacher can manage question banks and generate papers.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin can additionally manage users.
	UserRoleAdmin UserRole = "admin"
)

// User represents a staff login.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// Part is a section of the question paper.
type Part string

const (
	PartA Part = "A"
	PartB Part = "B"
	PartC Part = "C"
)

// Parts lists the paper sections in print order.
var Parts = []Part{PartA, PartB, PartC}

// ParsePart normalizes a part letter. ok is false for anything outside A-C.
func ParsePart(s string) (Part, bool) {
	p := Part(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PartA, PartB, PartC:
		return p, true
	}
	return p, false
}

// KLevel is a Bloom's taxonomy level, K1 (Remember) to K6 (Create).
type KLevel string

// KLevels lists the valid cognitive levels.
var KLevels = []KLevel{"K1", "K2", "K3", "K4", "K5", "K6"}

// COLevel is a course outcome tag.
type COLevel string

// COLevels lists the course outcomes a question can be tagged with.
var COLevels = []COLevel{"CO1", "CO2", "CO3", "CO4", "CO5"}

// Subject is a course whose question bank is stored.
type Subject struct {
	ID   int64  `json:"id"`
	Code string `json:"subject_code"`
	Name string `json:"subject_name"`
}

// Question is a stored question bank record. The Or* fields hold an optional
// alternative stored alongside the main question.
type Question struct {
	ID           int64     `json:"id"`
	SubjectID    int64     `json:"subject_id"`
	Content      string    `json:"content"`
	Marks        int       `json:"marks"`
	KLevel       KLevel    `json:"k_level"`
	Part         Part      `json:"part"`
	COLevel      COLevel   `json:"co_level"`
	HasFormula   bool      `json:"has_formula"`
	HasOr        bool      `json:"has_or"`
	OrContent    string    `json:"or_content,omitempty"`
	OrMarks      int       `json:"or_marks,omitempty"`
	OrKLevel     KLevel    `json:"or_k_level,omitempty"`
	OrPart       Part      `json:"or_part,omitempty"`
	OrCOLevel    COLevel   `json:"or_co_level,omitempty"`
	OrHasFormula bool      `json:"or_has_formula,omitempty"`
	CreatedBy    int64     `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Alternative is the OR question printed beneath a main question.
// Zero Marks, KLevel, or COLevel means the main question's value applies.
// SourceID is set only when the alternative was drawn as a bank question of its own.
type Alternative struct {
	SourceID   int64   `json:"source_id,omitempty"`
	Content    string  `json:"content"`
	Marks      int     `json:"marks,omitempty"`
	KLevel     KLevel  `json:"k_level,omitempty"`
	Part       Part    `json:"part,omitempty"`
	COLevel    COLevel `json:"co_level,omitempty"`
	HasFormula bool    `json:"has_formula,omitempty"`
}

// PaperQuestion is one numbered entry of a paper. Alt is non-nil exactly when HasOr is true.
type PaperQuestion struct {
	ID         string       `json:"id"`
	SourceID   int64        `json:"source_id,omitempty"`
	Content    string       `json:"content"`
	Marks      int          `json:"marks"`
	KLevel     KLevel       `json:"k_level"`
	Part       Part         `json:"part"`
	COLevel    COLevel      `json:"co_level"`
	HasFormula bool         `json:"has_formula"`
	HasOr      bool         `json:"has_or"`
	Alt        *Alternative `json:"alt,omitempty"`
}

// PaperMeta is the descriptive information printed in the paper header.
// List fields mirror the multi-select form; the first value is used where only one fits.
type PaperMeta struct {
	Departments []string `json:"department"`
	Years       []string `json:"year"`
	Semesters   []string `json:"semester"`
	Tests       []string `json:"tests"`
	Duration    string   `json:"duration"`
	Dates       []string `json:"date"`
	Regulations []string `json:"regulations"`
	SubjectCode string   `json:"subject_code"`
	SubjectName string   `json:"subject_name"`
}

// Institution holds the identity lines at the top of every paper.
type Institution struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Address string `json:"address"`
}

// ServeConfig holds runtime parameters for the HTTP server set via CLI flags.
type ServeConfig struct {
	BasePath      string // URL prefix for sub-path deployments (e.g. "/cse")
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
	Blueprint     string // default blueprint name offered in the paper form
}
