package ssonotify

const (
	templateResetPassword  = "reset_password"
	templateUpdateEmail    = "update_email"
	templateUpdatePassword = "update_password"
)

// templateData is the rendering context shared by all three emails.
type templateData struct {
	ServiceName string
	ServiceURL  string
	UserName    string
	UserEmail   string
	OldEmail    string
	Token       string
	ActionURL   string
}

var templates = map[string]string{
	templateResetPassword: `<p>Hi {{.UserName}},</p>
<p>A password reset was requested for your {{.ServiceName}} account ({{.UserEmail}}).</p>
{{if .ActionURL}}<p><a href="{{.ActionURL}}">Reset your password</a></p>{{else}}<p>Your reset token: <code>{{.Token}}</code></p>{{end}}
<p>If you did not request this, you can ignore this email. The token expires shortly and can be used only once.</p>`,

	templateUpdateEmail: `<p>Hi {{.UserName}},</p>
<p>The email address on your {{.ServiceName}} account was changed from {{.OldEmail}} to {{.UserEmail}}.</p>
{{if .ActionURL}}<p>If this was not you, <a href="{{.ActionURL}}">revoke this change</a> immediately.</p>{{else}}<p>If this was not you, use this revoke token immediately: <code>{{.Token}}</code></p>{{end}}
<p>Revoking disables the account and all of its keys until an operator restores access.</p>`,

	templateUpdatePassword: `<p>Hi {{.UserName}},</p>
<p>The password on your {{.ServiceName}} account ({{.UserEmail}}) was changed.</p>
{{if .ActionURL}}<p>If this was not you, <a href="{{.ActionURL}}">revoke this change</a> immediately.</p>{{else}}<p>If this was not you, use this revoke token immediately: <code>{{.Token}}</code></p>{{end}}
<p>Revoking disables the account and all of its keys until an operator restores access.</p>`,
}
