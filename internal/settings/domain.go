package settings

import "time"

// System holds site-wide behaviour switches.
type System struct {
	SiteName                  string `json:"siteName"`
	SiteDescription           string `json:"siteDescription"`
	SiteURL                   string `json:"siteUrl"`
	AdminEmail                string `json:"adminEmail"`
	Timezone                  string `json:"timezone"`
	Language                  string `json:"language"`
	MaintenanceMode           bool   `json:"maintenanceMode"`
	RegistrationEnabled       bool   `json:"registrationEnabled"`
	CommentsEnabled           bool   `json:"commentsEnabled"`
	EmailVerificationRequired bool   `json:"emailVerificationRequired"`
	MaxFileSize               int    `json:"maxFileSize"`
	ArticlesPerPage           int    `json:"articlesPerPage"`
	SessionTimeout            int    `json:"sessionTimeout"`
}

// Email holds outbound mail settings. SMTPPassword is never returned by the API.
type Email struct {
	SMTPHost     string  `json:"smtpHost"`
	SMTPPort     int     `json:"smtpPort"`
	SMTPUser     string  `json:"smtpUser"`
	SMTPPassword *string `json:"smtpPassword"`
	SenderName   string  `json:"senderName"`
	SenderEmail  string  `json:"senderEmail"`
	EnableSSL    bool    `json:"enableSSL"`
}

// Security holds password and session policy.
type Security struct {
	PasswordMinLength   int      `json:"passwordMinLength"`
	RequireSpecialChars bool     `json:"requireSpecialChars"`
	SessionDuration     int      `json:"sessionDuration"`
	MaxLoginAttempts    int      `json:"maxLoginAttempts"`
	TwoFactorEnabled    bool     `json:"twoFactorEnabled"`
	IPWhitelist         []string `json:"ipWhitelist"`
}

// Settings is the singleton configuration row.
type Settings struct {
	System    System    `json:"system"`
	Email     Email     `json:"email"`
	Security  Security  `json:"security"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Defaults returns the configuration used before anything is saved.
func Defaults() Settings {
	return Settings{
		System: System{
			SiteName:                  "Newsdesk",
			SiteURL:                   "http://localhost:3000",
			AdminEmail:                "admin@example.com",
			Timezone:                  "Europe/Paris",
			Language:                  "fr",
			RegistrationEnabled:       true,
			CommentsEnabled:           true,
			EmailVerificationRequired: true,
			MaxFileSize:               10,
			ArticlesPerPage:           20,
			SessionTimeout:            30,
		},
		Email: Email{
			SMTPPort:  587,
			EnableSSL: true,
		},
		Security: Security{
			PasswordMinLength:   8,
			RequireSpecialChars: true,
			SessionDuration:     24,
			MaxLoginAttempts:    5,
			IPWhitelist:         []string{},
		},
	}
}

// Masked returns a copy safe to send to clients.
func (s Settings) Masked() Settings {
	s.Email = s.Email.Masked()
	return s
}

// Masked clears the SMTP password.
func (e Email) Masked() Email {
	e.SMTPPassword = nil
	return e
}

// UpdateSystemInput patches System. Nil fields keep their value.
type UpdateSystemInput struct {
	SiteName                  *string `json:"siteName" validate:"omitempty,max=200"`
	SiteDescription           *string `json:"siteDescription" validate:"omitempty,max=1000"`
	SiteURL                   *string `json:"siteUrl" validate:"omitempty,url"`
	AdminEmail                *string `json:"adminEmail" validate:"omitempty,email"`
	Timezone                  *string `json:"timezone" validate:"omitempty,timezone"`
	Language                  *string `json:"language" validate:"omitempty,max=10"`
	MaintenanceMode           *bool   `json:"maintenanceMode"`
	RegistrationEnabled       *bool   `json:"registrationEnabled"`
	CommentsEnabled           *bool   `json:"commentsEnabled"`
	EmailVerificationRequired *bool   `json:"emailVerificationRequired"`
	MaxFileSize               *int    `json:"maxFileSize" validate:"omitempty,min=1,max=500"`
	ArticlesPerPage           *int    `json:"articlesPerPage" validate:"omitempty,min=1,max=200"`
	SessionTimeout            *int    `json:"sessionTimeout" validate:"omitempty,min=1,max=10080"`
}

// UpdateEmailInput patches Email. An absent or empty password keeps the
// stored one.
type UpdateEmailInput struct {
	SMTPHost     *string `json:"smtpHost" validate:"omitempty,max=255"`
	SMTPPort     *int    `json:"smtpPort" validate:"omitempty,min=1,max=65535"`
	SMTPUser     *string `json:"smtpUser" validate:"omitempty,max=255"`
	SMTPPassword *string `json:"smtpPassword" validate:"omitempty,max=255"`
	SenderName   *string `json:"senderName" validate:"omitempty,max=200"`
	SenderEmail  *string `json:"senderEmail" validate:"omitempty,email"`
	EnableSSL    *bool   `json:"enableSSL"`
}

// UpdateSecurityInput patches Security.
type UpdateSecurityInput struct {
	PasswordMinLength   *int     `json:"passwordMinLength" validate:"omitempty,min=6,max=64"`
	RequireSpecialChars *bool    `json:"requireSpecialChars"`
	SessionDuration     *int     `json:"sessionDuration" validate:"omitempty,min=1,max=168"`
	MaxLoginAttempts    *int     `json:"maxLoginAttempts" validate:"omitempty,min=1,max=20"`
	TwoFactorEnabled    *bool    `json:"twoFactorEnabled"`
	IPWhitelist         []string `json:"ipWhitelist" validate:"omitempty,unique,dive,ip|cidr"`
}

func (in UpdateSystemInput) apply(s *System) {
	setString(&s.SiteName, in.SiteName)
	setString(&s.SiteDescription, in.SiteDescription)
	setString(&s.SiteURL, in.SiteURL)
	setString(&s.AdminEmail, in.AdminEmail)
	setString(&s.Timezone, in.Timezone)
	setString(&s.Language, in.Language)
	setBool(&s.MaintenanceMode, in.MaintenanceMode)
	setBool(&s.RegistrationEnabled, in.RegistrationEnabled)
	setBool(&s.CommentsEnabled, in.CommentsEnabled)
	setBool(&s.EmailVerificationRequired, in.EmailVerificationRequired)
	setInt(&s.MaxFileSize, in.MaxFileSize)
	setInt(&s.ArticlesPerPage, in.ArticlesPerPage)
	setInt(&s.SessionTimeout, in.SessionTimeout)
}

func (in UpdateEmailInput) apply(e *Email) {
	setString(&e.SMTPHost, in.SMTPHost)
	setInt(&e.SMTPPort, in.SMTPPort)
	setString(&e.SMTPUser, in.SMTPUser)
	if in.SMTPPassword != nil && *in.SMTPPassword != "" {
		pw := *in.SMTPPassword
		e.SMTPPassword = &pw
	}
	setString(&e.SenderName, in.SenderName)
	setString(&e.SenderEmail, in.SenderEmail)
	setBool(&e.EnableSSL, in.EnableSSL)
}

func (in UpdateSecurityInput) apply(s *Security) {
	setInt(&s.PasswordMinLength, in.PasswordMinLength)
	setBool(&s.RequireSpecialChars, in.RequireSpecialChars)
	setInt(&s.SessionDuration, in.SessionDuration)
	setInt(&s.MaxLoginAttempts, in.MaxLoginAttempts)
	setBool(&s.TwoFactorEnabled, in.TwoFactorEnabled)
	if in.IPWhitelist != nil {
		s.IPWhitelist = append([]string{}, in.IPWhitelist...)
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
