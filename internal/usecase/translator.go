package usecase

// Translator resolves localized user-facing messages.
type Translator interface {
	T(key string, args ...interface{}) string
}
