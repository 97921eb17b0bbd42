package model

import "time"

// User represents a registered learner account.
//
// GitHub OAuth is the identity provider — learners never set a password
// here. The primary external identifier is GitHub's numeric user ID; we
// still generate our own internal string ID (xid) so primary keys aren't
// tied to a third party's numbering scheme, and so Program and Run rows
// reference users the same way they reference everything else.
//
// Email can legitimately be empty (hidden in the user's GitHub settings);
// an empty string is simpler to carry around than a nullable pointer.
type User struct {
	ID        string    `json:"id"        db:"id"`
	GitHubID  int64     `json:"githubId"  db:"github_id"` // GitHub's numeric user ID
	Login     string    `json:"login"     db:"login"`     // GitHub username
	Email     string    `json:"email"     db:"email"`     // Primary public email (may be empty)
	AvatarURL string    `json:"avatarUrl" db:"avatar_url"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
