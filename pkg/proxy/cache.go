package proxy

// CacheStatus is the value of the X-Cache response header.
type CacheStatus string

const (
	CacheHit  CacheStatus = "HIT"
	CacheMiss CacheStatus = "MISS"
)

func (s CacheStatus) String() string {
	return string(s)
}
