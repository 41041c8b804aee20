package domain

// LoginMode selects how a board strategy authenticates.
type LoginMode string

const (
	LoginNone        LoginMode = "none"
	LoginCredentials LoginMode = "credentials"
	LoginSession     LoginMode = "session"
)

// Board is an external job-posting destination. Boards come from the
// catalog and are read-only to the engine.
type Board struct {
	ID        string            `json:"id" toml:"id"`
	Name      string            `json:"name" toml:"name"`
	BaseURL   string            `json:"baseUrl" toml:"base_url"`
	PostURL   string            `json:"postUrl" toml:"post_url"`
	Enabled   bool              `json:"enabled" toml:"enabled"`
	Strategy  string            `json:"strategy,omitempty" toml:"strategy"`
	Selectors map[string]string `json:"selectors,omitempty" toml:"selectors"`

	Login LoginConfig `json:"login" toml:"login"`

	SuccessSelector string   `json:"successSelector,omitempty" toml:"success_selector"`
	SuccessTexts    []string `json:"successTexts,omitempty" toml:"success_texts"`
	ErrorTexts      []string `json:"errorTexts,omitempty" toml:"error_texts"`

	ConfirmEmail *EmailRule `json:"confirmEmail,omitempty" toml:"confirm_email"`
}

// LoginConfig describes the board's authentication flow.
type LoginConfig struct {
	Mode             LoginMode `json:"mode" toml:"mode"`
	URL              string    `json:"url,omitempty" toml:"url"`
	UsernameSelector string    `json:"usernameSelector,omitempty" toml:"username_selector"`
	PasswordSelector string    `json:"passwordSelector,omitempty" toml:"password_selector"`
	SubmitSelector   string    `json:"submitSelector,omitempty" toml:"submit_selector"`
	LoggedInSelector string    `json:"loggedInSelector,omitempty" toml:"logged_in_selector"`
}

// EmailRule matches the confirmation message a board sends once a listing is live.
type EmailRule struct {
	FromContains string   `json:"fromContains" toml:"from_contains"`
	SubjectAny   []string `json:"subjectAny" toml:"subject_any"`
}

// HasStaticSelectors reports whether the board carries a usable selector map.
func (b Board) HasStaticSelectors() bool {
	return len(b.Selectors) > 0 && b.Selectors[string(RoleSubmit)] != ""
}
