package model

type SharePermission string

const (
	PermissionView         SharePermission = "view"
	PermissionViewCopy     SharePermission = "view_copy"
	PermissionViewDownload SharePermission = "view_download"
)

func (p SharePermission) Valid() bool {
	switch p {
	case PermissionView, PermissionViewCopy, PermissionViewDownload:
		return true
	}
	return false
}

type ShareToken struct {
	ID             string          `json:"id"`
	Token          string          `json:"token,omitempty"`
	SnippetID      string          `json:"snippet_id"`
	CreatedBy      string          `json:"created_by"`
	Description    string          `json:"description"`
	Permission     SharePermission `json:"permission"`
	PasswordHash   string          `json:"-"`
	IsActive       bool            `json:"is_active"`
	AccessCount    int64           `json:"access_count"`
	MaxAccessCount int64           `json:"max_access_count"`
	AllowDownload  bool            `json:"allow_download"`
	AllowCopy      bool            `json:"allow_copy"`
	ExpiresAt      *int64          `json:"expires_at,omitempty"`
	LastAccessedAt *int64          `json:"last_accessed_at,omitempty"`
	Ctime          int64           `json:"ctime"`
	Mtime          int64           `json:"mtime"`
}

func (t *ShareToken) PasswordProtected() bool {
	return t.PasswordHash != ""
}

// Unlimited reports whether the token has no access-count cap.
func (t *ShareToken) Unlimited() bool {
	return t.MaxAccessCount == 0
}

func (t *ShareToken) Expired(now int64) bool {
	return t.ExpiresAt != nil && now >= *t.ExpiresAt
}

func (t *ShareToken) LimitReached() bool {
	return !t.Unlimited() && t.AccessCount >= t.MaxAccessCount
}

// Usable reports whether an access attempt could still succeed.
func (t *ShareToken) Usable(now int64) bool {
	return t.IsActive && !t.Expired(now) && !t.LimitReached()
}
