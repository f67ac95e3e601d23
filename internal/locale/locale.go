// Package locale holds the user-facing message catalogs.
package locale

// Locale selects a catalog.
type Locale string

const (
	EN Locale = "en"
	ID Locale = "id"
)

// Message keys.
const (
	AuthRequired           = "auth.required"
	AuthRegisterRequired   = "auth.register_required"
	AuthUsernameTooShort   = "auth.username_too_short"
	AuthSecretTooShort     = "auth.secret_too_short"
	AuthSecretMismatch     = "auth.secret_mismatch"
	AuthInvalidCredentials = "auth.invalid_credentials"
	AuthInvalidFormat      = "auth.invalid_format"
	AuthUsernameTaken      = "auth.username_taken"
	AuthWeakSecret         = "auth.weak_secret"
	AuthUnknown            = "auth.unknown"
	RegisterSuccessTitle   = "register.success_title"
	RegisterSuccessBody    = "register.success_body"
	SendEmpty              = "send.empty"
	SendBusy               = "send.busy"
	SendRateLimited        = "send.rate_limited"
	SendFailed             = "send.failed"
	UploadFailedTitle      = "upload.failed_title"
	UploadUnknown          = "upload.unknown"
	UploadBusy             = "upload.busy"
	InputPlaceholder       = "chat.placeholder"
	Guest                  = "chat.guest"
)

var catalogs = map[Locale]map[string]string{
	EN: {
		AuthRequired:           "Username and password are required",
		AuthRegisterRequired:   "Username and password must be filled in",
		AuthUsernameTooShort:   "Username must be at least 3 characters",
		AuthSecretTooShort:     "Password must be at least 6 characters",
		AuthSecretMismatch:     "Passwords do not match",
		AuthInvalidCredentials: "Wrong username or password.",
		AuthInvalidFormat:      "Invalid username format.",
		AuthUsernameTaken:      "Username is already taken.",
		AuthWeakSecret:         "Password is too weak.",
		AuthUnknown:            "Unknown error",
		RegisterSuccessTitle:   "Registration successful",
		RegisterSuccessBody:    "Please log in with your new account.",
		SendEmpty:              "Message is empty",
		SendBusy:               "Still sending the previous message",
		SendRateLimited:        "Too many messages. Try again later.",
		SendFailed:             "Failed to send message: ",
		UploadFailedTitle:      "Upload failed",
		UploadUnknown:          "An unknown error occurred (storage/unknown)",
		UploadBusy:             "An upload is already in progress",
		InputPlaceholder:       "Type a message...",
		Guest:                  "Guest",
	},
	ID: {
		AuthRequired:           "Username dan password harus diisi",
		AuthRegisterRequired:   "Username dan password wajib diisi",
		AuthUsernameTooShort:   "Username minimal 3 karakter",
		AuthSecretTooShort:     "Password minimal 6 karakter",
		AuthSecretMismatch:     "Password tidak sama",
		AuthInvalidCredentials: "Username atau password salah.",
		AuthInvalidFormat:      "Format username tidak valid.",
		AuthUsernameTaken:      "Username sudah dipakai orang lain.",
		AuthWeakSecret:         "Password terlalu lemah.",
		AuthUnknown:            "Terjadi kesalahan yang tidak diketahui",
		RegisterSuccessTitle:   "Registrasi Berhasil",
		RegisterSuccessBody:    "Silakan login dengan akun baru Anda.",
		SendEmpty:              "Pesan kosong",
		SendBusy:               "Pesan sebelumnya masih dikirim",
		SendRateLimited:        "Terlalu banyak pesan. Coba lagi nanti.",
		SendFailed:             "Gagal mengirim pesan: ",
		UploadFailedTitle:      "Upload Gagal",
		UploadUnknown:          "Terjadi kesalahan yang tidak diketahui (storage/unknown)",
		UploadBusy:             "Upload sedang berjalan",
		InputPlaceholder:       "Ketik pesan...",
		Guest:                  "Guest",
	},
}

// Parse returns the locale named by s, falling back to ID.
func Parse(s string) Locale {
	if _, ok := catalogs[Locale(s)]; ok {
		return Locale(s)
	}
	return ID
}

// T returns the message for key. Unknown locales fall back to ID, unknown
// keys to the key itself.
func (l Locale) T(key string) string {
	cat, ok := catalogs[l]
	if !ok {
		cat = catalogs[ID]
	}
	if msg, ok := cat[key]; ok {
		return msg
	}
	return key
}
