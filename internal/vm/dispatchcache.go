package vm

import (
	"hash/fnv"

	"github.com/dolthub/swiss"
)

// NoMatch is the sentinel func_index meaning "no candidate matched".
const NoMatch = int(^uint(0) >> 1)

func hashTypeName(name string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return h.Sum64()
}

// DispatchCache is the VM's two-level call_site_ip → type_hash →
// func_index cache. swiss.Map is used for both levels since
// this is exactly the high-churn, lookup-dominated workload swiss tables
// are built for — one entry created per distinct (call site, runtime
// type) pair ever observed during a run.
type DispatchCache struct {
	sites *swiss.Map[int, *swiss.Map[uint64, int]]

	// scoringCalls counts invocations of the scoring algorithm, letting
	// tests verify that a cache hit performs no additional scoring work.
	scoringCalls int
}

func NewDispatchCache() *DispatchCache {
	return &DispatchCache{sites: swiss.NewMap[int, *swiss.Map[uint64, int]](8)}
}

// Lookup returns (func_index, true) on a cache hit; the second value is
// false only when nothing has ever been recorded for this (ip, type)
// pair — a recorded "no match" still returns true with NoMatch.
func (c *DispatchCache) Lookup(callSiteIP int, runtimeType string) (int, bool) {
	inner, ok := c.sites.Get(callSiteIP)
	if !ok {
		return 0, false
	}
	return inner.Get(hashTypeName(runtimeType))
}

func (c *DispatchCache) Store(callSiteIP int, runtimeType string, funcIndex int) {
	inner, ok := c.sites.Get(callSiteIP)
	if !ok {
		inner = swiss.NewMap[uint64, int](4)
		c.sites.Put(callSiteIP, inner)
	}
	inner.Put(hashTypeName(runtimeType), funcIndex)
}

func (c *DispatchCache) RecordScoring() { c.scoringCalls++ }
func (c *DispatchCache) ScoringCalls() int { return c.scoringCalls }
