package store

import (
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"
)

// Permission names carried by roles.
const (
	PermUserView         = "user_view"
	PermUserCreate       = "user_create"
	PermUserEdit         = "user_edit"
	PermUserDelete       = "user_delete"
	PermProductView      = "product_view"
	PermProductCreate    = "product_create"
	PermProductEdit      = "product_edit"
	PermProductDelete    = "product_delete"
	PermProfileSetting   = "profile_setting"
	PermSystemSetting    = "system_setting"
	PermPermissionManage = "permission_manage"
)

// AllPermissions lists every known permission in display order.
var AllPermissions = []string{
	PermUserView, PermUserCreate, PermUserEdit, PermUserDelete,
	PermProductView, PermProductCreate, PermProductEdit, PermProductDelete,
	PermProfileSetting, PermSystemSetting, PermPermissionManage,
}

// PermissionGroup groups permissions for the role editor.
type PermissionGroup struct {
	Title       string
	Value       string
	Permissions []string
}

// PermissionTree is the grouping shown on the permissions page.
var PermissionTree = []PermissionGroup{
	{Title: "User Management", Value: "user_manage", Permissions: []string{PermUserView, PermUserCreate, PermUserEdit, PermUserDelete}},
	{Title: "Product Management", Value: "product_manage", Permissions: []string{PermProductView, PermProductCreate, PermProductEdit, PermProductDelete}},
	{Title: "System Settings", Value: "system_manage", Permissions: []string{PermProfileSetting, PermSystemSetting, PermPermissionManage}},
}

// Role statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// FieldErrors maps a field name to a human readable problem.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, k := range sortedFields(fe) {
		parts = append(parts, k+": "+fe[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func sortedFields(fe FieldErrors) []string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func orNil(fe FieldErrors) error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// User is a dashboard account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Avatar       string    `json:"avatar,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	Department   string    `json:"department,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Validate checks the fields a caller may set.
func (u *User) Validate() error {
	fe := FieldErrors{}
	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.TrimSpace(u.Email)
	u.Name = strings.TrimSpace(u.Name)

	switch {
	case u.Username == "":
		fe["username"] = "is required"
	case len(u.Username) < 3 || len(u.Username) > 50:
		fe["username"] = "must be between 3 and 50 characters"
	}
	if u.Email == "" {
		fe["email"] = "is required"
	} else if _, err := mail.ParseAddress(u.Email); err != nil {
		fe["email"] = "is not a valid address"
	}
	if u.Name == "" {
		fe["name"] = "is required"
	}
	if u.Role == "" {
		fe["role"] = "is required"
	}
	return orNil(fe)
}

// AvatarFor returns the generated avatar URL for a username.
func AvatarFor(username string) string {
	return "https://api.dicebear.com/7.x/avataaars/svg?seed=" + username
}

// Role is a named permission set.
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Permissions []string  `json:"permissions"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createTime"`
}

// Active reports whether the role grants its permissions.
func (r *Role) Active() bool {
	return r.Status == StatusActive
}

// Has reports whether the role carries perm.
func (r *Role) Has(perm string) bool {
	return slices.Contains(r.Permissions, perm)
}

// Validate normalizes permissions and checks the role fields.
func (r *Role) Validate() error {
	fe := FieldErrors{}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		fe["name"] = "is required"
	}
	if r.Status == "" {
		r.Status = StatusActive
	}
	if r.Status != StatusActive && r.Status != StatusInactive {
		fe["status"] = fmt.Sprintf("must be %q or %q", StatusActive, StatusInactive)
	}

	perms := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		if !slices.Contains(AllPermissions, p) {
			fe["permissions"] = fmt.Sprintf("unknown permission %q", p)
			continue
		}
		if !slices.Contains(perms, p) {
			perms = append(perms, p)
		}
	}
	r.Permissions = perms
	return orNil(fe)
}

// Product is a catalogue entry.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Stock     int       `json:"stock"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks the product fields.
func (p *Product) Validate() error {
	fe := FieldErrors{}
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	if p.Name == "" {
		fe["name"] = "is required"
	}
	if p.Category == "" {
		fe["category"] = "is required"
	}
	if p.Price < 0 {
		fe["price"] = "cannot be negative"
	}
	if p.Stock < 0 {
		fe["stock"] = "cannot be negative"
	}
	return orNil(fe)
}

// Theme modes.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// SystemSettings holds per-user dashboard preferences.
type SystemSettings struct {
	EnableAutoSave          bool   `json:"enableAutoSave"`
	ThemeMode               string `json:"themeMode"`
	PageSize                int    `json:"pageSize"`
	Timeout                 int    `json:"timeout"`
	NotificationSound       bool   `json:"notificationSound"`
	NotificationDisplayTime int    `json:"notificationDisplayTime"`
	SidebarCollapse         bool   `json:"sidebarCollapse"`
	AnimateComponents       bool   `json:"animateComponents"`
}

// DefaultSettings returns the settings a user starts with.
func DefaultSettings() SystemSettings {
	return SystemSettings{
		EnableAutoSave:          true,
		ThemeMode:               ThemeLight,
		PageSize:                10,
		Timeout:                 30,
		NotificationSound:       true,
		NotificationDisplayTime: 3,
		SidebarCollapse:         false,
		AnimateComponents:       true,
	}
}

// Validate bounds the numeric settings and the theme.
func (s *SystemSettings) Validate(maxPageSize int) error {
	fe := FieldErrors{}
	if s.ThemeMode != ThemeLight && s.ThemeMode != ThemeDark {
		fe["themeMode"] = "must be light or dark"
	}
	if s.PageSize < 1 || (maxPageSize > 0 && s.PageSize > maxPageSize) {
		fe["pageSize"] = fmt.Sprintf("must be between 1 and %d", maxPageSize)
	}
	if s.Timeout < 1 || s.Timeout > 1440 {
		fe["timeout"] = "must be between 1 and 1440 minutes"
	}
	if s.NotificationDisplayTime < 1 || s.NotificationDisplayTime > 60 {
		fe["notificationDisplayTime"] = "must be between 1 and 60 seconds"
	}
	return orNil(fe)
}

// ListOptions filters and pages list queries.
type ListOptions struct {
	Search string
	Limit  int
	Offset int
}

func (o ListOptions) window(total int) (int, int) {
	start := min(max(o.Offset, 0), total)
	end := total
	if o.Limit > 0 {
		end = min(start+o.Limit, total)
	}
	return start, end
}

func matches(search string, fields ...string) bool {
	if search == "" {
		return true
	}
	search = strings.ToLower(search)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}
