package backend

// KeyToken is the local store key of the persisted id token.
const KeyToken = "auth.token"

// KV is the subset of the local store the token store needs.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// KVTokens persists the id token in the local store.
type KVTokens struct {
	kv KV
}

// NewKVTokens returns a token store over kv.
func NewKVTokens(kv KV) *KVTokens {
	return &KVTokens{kv: kv}
}

func (t *KVTokens) LoadToken() (string, bool, error) {
	return t.kv.Get(KeyToken)
}

func (t *KVTokens) SaveToken(token string) error {
	return t.kv.Set(KeyToken, token)
}

func (t *KVTokens) ClearToken() error {
	return t.kv.Delete(KeyToken)
}
