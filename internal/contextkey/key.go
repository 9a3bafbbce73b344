package contextkey

type ctxKey string

func (k ctxKey) String() string { return "semconv-collector/" + string(k) }

const (
	ProjectKey ctxKey = "project"
	APIKeyKey  ctxKey = "apiKey"
)
