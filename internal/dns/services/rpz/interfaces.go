package rpz

// DecisionCache stores QueryPolicy results. policycache.Cache[Policy]
// satisfies it.
type DecisionCache interface {
	Get(key string) (Policy, bool)
	Put(key string, p Policy)
	Purge()
}
