package surface

import "html/template"

// One page, one template. Styling is the embedding webview's problem; the
// markup only carries the step structure.
var pageTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Sign In</title></head>
<body>
<div id="auth-container">
{{- if eq .State "outage"}}
  <h2>You're currently offline</h2>
  <p>This device requires an internet connection for initial setup and authentication.</p>
  {{if .Notice}}<p class="error-message">{{.Notice}}</p>{{end}}
  <form method="post" action="/retry"><button type="submit">Retry Connection</button></form>
{{- else if eq .State "revoked"}}
  <h2>Account suspended</h2>
  <p>{{.Notice}}</p>
  <form method="post" action="/signout"><button type="submit">Sign Out</button></form>
{{- else if eq .State "checking"}}
  <h2>Please wait</h2>
  <p>Checking your account…</p>
{{- else if eq .State "handed_off"}}
  <h2>Signed in{{if .Name}} as {{.Name}}{{end}}</h2>
  <p>The application is starting.</p>
{{- else if eq .State "awaiting_credentials"}}
  <h2>Sign In</h2>
  {{- if eq .Step "method-select"}}
  <form method="post" action="/method">
    <button name="method" value="email" type="submit">Sign in with Email</button>
    <button name="method" value="phone" type="submit">Sign in with Phone</button>
  </form>
  {{- else if eq .Step "email-form"}}
  <form method="post" action="/email">
    <label for="name">Full Name</label>
    <input type="text" id="name" name="name" value="{{.FormName}}" required>
    <label for="email">Email Address</label>
    <input type="email" id="email" name="email" value="{{.Email}}" required>
    <button type="submit">Send PIN Code</button>
  </form>
  <form method="post" action="/method"><button name="method" value="" type="submit">Back</button></form>
  {{- else if eq .Step "email-code"}}
  <p>Enter the 6-digit PIN sent to <strong>{{.Email}}</strong></p>
  <form method="post" action="/email/verify">
    <label for="pin">PIN Code</label>
    <input type="text" id="pin" name="pin" maxlength="6" pattern="[0-9]{6}" required>
    <button type="submit">Verify PIN</button>
  </form>
  <form method="post" action="/resend"><button type="submit">Resend PIN</button></form>
  {{- else if eq .Step "phone-form"}}
  <form method="post" action="/phone">
    <label for="name">Full Name</label>
    <input type="text" id="name" name="name" value="{{.FormName}}" required>
    <label for="phone">Phone Number</label>
    <input type="tel" id="phone" name="phone" value="{{.Phone}}" required>
    <button type="submit">Send OTP</button>
  </form>
  <form method="post" action="/method"><button name="method" value="" type="submit">Back</button></form>
  {{- else if eq .Step "phone-code"}}
  <p>Enter the 6-digit code sent to <strong>{{.Phone}}</strong></p>
  <form method="post" action="/phone/verify">
    <label for="otp">SMS Code</label>
    <input type="text" id="otp" name="otp" maxlength="6" pattern="[0-9]{6}" required>
    <button type="submit">Verify Code</button>
  </form>
  {{- end}}
  {{- if .Message}}
  <p class="{{if eq .MsgKind "error"}}error-message{{else}}success-message{{end}}">{{.Message}}</p>
  {{- end}}
{{- else}}
  <h2>Starting…</h2>
{{- end}}
</div>
</body>
</html>
`))
