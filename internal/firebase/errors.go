package firebase

import "fmt"

// AuthErrorCode is the closed set of identity provider failure modes the
// gateway understands. Upstream responses carry free-form code strings; they
// are mapped onto this enum exactly once, here, so no other package ever
// switches on raw provider strings.
type AuthErrorCode string

const (
	CodeInvalidEmail        AuthErrorCode = "invalid-email"
	CodeUserNotFound        AuthErrorCode = "user-not-found"
	CodeWrongPassword       AuthErrorCode = "wrong-password"
	CodeTooManyRequests     AuthErrorCode = "too-many-requests"
	CodeNetworkFailed       AuthErrorCode = "network-failed"
	CodeInvalidCredential   AuthErrorCode = "invalid-credential"
	CodeEmailInUse          AuthErrorCode = "email-in-use"
	CodeWeakPassword        AuthErrorCode = "weak-password"
	CodeOperationNotAllowed AuthErrorCode = "operation-not-allowed"
	CodeRequiresRecentLogin AuthErrorCode = "requires-recent-login"
	CodeUnknown             AuthErrorCode = "unknown"
)

// userMessages maps every error code to the end-user message shown by the
// storefront clients. Raw provider codes are never surfaced to end users.
var userMessages = map[AuthErrorCode]string{
	CodeInvalidEmail:        "Email inválido",
	CodeUserNotFound:        "Usuário não encontrado",
	CodeWrongPassword:       "Senha incorreta",
	CodeTooManyRequests:     "Muitas tentativas. Tente novamente mais tarde",
	CodeNetworkFailed:       "Erro de conexão. Verifique sua internet",
	CodeInvalidCredential:   "Credenciais inválidas",
	CodeEmailInUse:          "Este email já está em uso",
	CodeWeakPassword:        "A senha deve ter pelo menos 6 caracteres",
	CodeOperationNotAllowed: "Operação não permitida",
	CodeRequiresRecentLogin: "Por segurança, faça login novamente antes de alterar a senha",
	CodeUnknown:             "Erro ao autenticar. Tente novamente",
}

// AuthError is an identity provider failure translated to the closed enum.
// The upstream code is retained for logs only.
type AuthError struct {
	Code     AuthErrorCode // Mapped error code
	Upstream string        // Raw provider code, for logging
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Upstream != "" {
		return fmt.Sprintf("auth: %s (upstream %s)", e.Code, e.Upstream)
	}
	return fmt.Sprintf("auth: %s", e.Code)
}

// UserMessage returns the localized end-user message for the error.
func (e *AuthError) UserMessage() string {
	if msg, ok := userMessages[e.Code]; ok {
		return msg
	}
	return userMessages[CodeUnknown]
}

// upstreamCodes maps Identity Toolkit response codes onto the closed enum.
// WEAK_PASSWORD arrives with a suffix ("WEAK_PASSWORD : Password should be
// at least 6 characters") and is matched by prefix in mapUpstreamCode.
var upstreamCodes = map[string]AuthErrorCode{
	"INVALID_EMAIL":                  CodeInvalidEmail,
	"EMAIL_NOT_FOUND":                CodeUserNotFound,
	"USER_NOT_FOUND":                 CodeUserNotFound,
	"INVALID_PASSWORD":               CodeWrongPassword,
	"TOO_MANY_ATTEMPTS_TRY_LATER":    CodeTooManyRequests,
	"INVALID_LOGIN_CREDENTIALS":      CodeInvalidCredential,
	"EMAIL_EXISTS":                   CodeEmailInUse,
	"WEAK_PASSWORD":                  CodeWeakPassword,
	"OPERATION_NOT_ALLOWED":          CodeOperationNotAllowed,
	"CREDENTIAL_TOO_OLD_LOGIN_AGAIN": CodeRequiresRecentLogin,
	"INVALID_ID_TOKEN":               CodeRequiresRecentLogin,
	"TOKEN_EXPIRED":                  CodeRequiresRecentLogin,
	"USER_DISABLED":                  CodeInvalidCredential,
}

// mapUpstreamCode translates a raw provider code into an AuthError.
func mapUpstreamCode(upstream string) *AuthError {
	if code, ok := upstreamCodes[upstream]; ok {
		return &AuthError{Code: code, Upstream: upstream}
	}
	// Codes like "WEAK_PASSWORD : Password should be at least 6 characters"
	// carry a descriptive suffix after the canonical code.
	for prefix, code := range upstreamCodes {
		if len(upstream) > len(prefix) && upstream[:len(prefix)] == prefix {
			return &AuthError{Code: code, Upstream: upstream}
		}
	}
	return &AuthError{Code: CodeUnknown, Upstream: upstream}
}

// networkError wraps a transport-level failure as a network-failed AuthError.
func networkError(err error) *AuthError {
	return &AuthError{Code: CodeNetworkFailed, Upstream: err.Error()}
}
