// Package graph mines the party graph of a transaction set for
// suspicious structure.
package graph

import (
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const (
	hubMinDegree        = 10
	fanOutMinTargets    = 5
	communityMaxSize    = 6
	communityMinDensity = 0.5
)

// Engine builds and analyzes party graphs.
type Engine struct{}

// NewEngine creates a new graph engine.
func NewEngine() *Engine {
	return &Engine{}
}

// node is one slot in the arena. Adjacency holds arena indices, and
// arena order is ascending id order, so index comparisons follow id
// comparisons.
type node struct {
	id         int64
	inDegree   int
	outDegree  int
	outTargets map[int]struct{} // distinct outbound endpoints, self excluded
	neighbors  map[int]struct{} // undirected view for components
}

type arena struct {
	nodes []node
	index map[int64]int
	edges int
}

// Analyze builds the party graph for a normalized set and reports its
// structure. Accounts and counterparties share one id namespace; a
// transaction with no counterparty contributes its account node but no
// edge. Output ordering depends only on node ids, so identical sets
// produce identical results.
func (e *Engine) Analyze(set domain.TransactionSet) domain.GraphResult {
	res := domain.GraphResult{
		SuspiciousPatterns: []domain.GraphPattern{},
		Communities:        []domain.Community{},
	}

	a := buildArena(set)
	res.NodeCount = len(a.nodes)
	res.EdgeCount = a.edges

	for i := range a.nodes {
		n := &a.nodes[i]
		if deg := n.inDegree + n.outDegree; deg >= hubMinDegree {
			res.SuspiciousPatterns = append(res.SuspiciousPatterns, domain.GraphPattern{
				Type:    domain.PatternHighDegreeHub,
				NodeIDs: []int64{n.id},
				Metric:  float64(deg),
			})
		}
		if len(n.outTargets) >= fanOutMinTargets {
			res.SuspiciousPatterns = append(res.SuspiciousPatterns, domain.GraphPattern{
				Type:    domain.PatternFanOut,
				NodeIDs: []int64{n.id},
				Metric:  float64(len(n.outTargets)),
			})
		}
	}

	for _, comp := range a.components() {
		members := make([]int64, len(comp))
		for j, u := range comp {
			members[j] = a.nodes[u].id
		}
		density := a.density(comp)
		res.Communities = append(res.Communities, domain.Community{
			MemberNodeIDs:   members,
			InternalDensity: density,
		})
		if len(comp) <= communityMaxSize && density > communityMinDensity {
			res.SuspiciousPatterns = append(res.SuspiciousPatterns, domain.GraphPattern{
				Type:    domain.PatternCommunityIsolation,
				NodeIDs: members,
				Metric:  density,
			})
		}
	}

	// NodeIDs[0] is the anchor: the node itself for hubs and fan-outs,
	// the smallest member for communities.
	sort.SliceStable(res.SuspiciousPatterns, func(i, j int) bool {
		pi, pj := res.SuspiciousPatterns[i], res.SuspiciousPatterns[j]
		if pi.NodeIDs[0] != pj.NodeIDs[0] {
			return pi.NodeIDs[0] < pj.NodeIDs[0]
		}
		return patternRank(pi.Type) < patternRank(pj.Type)
	})

	return res
}

func patternRank(t domain.PatternType) int {
	switch t {
	case domain.PatternHighDegreeHub:
		return 0
	case domain.PatternFanOut:
		return 1
	default:
		return 2
	}
}

func buildArena(set domain.TransactionSet) *arena {
	idSet := make(map[int64]struct{})
	for _, t := range set {
		idSet[t.AccountID] = struct{}{}
		if t.CounterpartyID != 0 {
			idSet[t.CounterpartyID] = struct{}{}
		}
	}

	ids := make([]int64, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	a := &arena{
		nodes: make([]node, len(ids)),
		index: make(map[int64]int, len(ids)),
	}
	for i, id := range ids {
		a.nodes[i] = node{
			id:         id,
			outTargets: make(map[int]struct{}),
			neighbors:  make(map[int]struct{}),
		}
		a.index[id] = i
	}

	for _, t := range set {
		if !t.HasCounterparty() {
			continue
		}
		// Payer to payee: inbound means the counterparty paid the
		// account, outbound the reverse.
		if t.Direction == domain.DirectionInbound {
			a.addEdge(a.index[t.CounterpartyID], a.index[t.AccountID])
		} else {
			a.addEdge(a.index[t.AccountID], a.index[t.CounterpartyID])
		}
	}
	return a
}

func (a *arena) addEdge(from, to int) {
	a.edges++
	a.nodes[from].outDegree++
	a.nodes[to].inDegree++
	if from != to {
		a.nodes[from].outTargets[to] = struct{}{}
		a.nodes[from].neighbors[to] = struct{}{}
		a.nodes[to].neighbors[from] = struct{}{}
	}
}

// components returns connected components of the undirected view, each
// sorted ascending, ordered by smallest member. Starting the scan from
// the lowest unvisited index guarantees that ordering.
func (a *arena) components() [][]int {
	visited := make([]bool, len(a.nodes))
	var comps [][]int

	for i := range a.nodes {
		if visited[i] {
			continue
		}
		visited[i] = true
		comp := []int{}
		stack := []int{i}
		for len(stack) > 0 {
			u := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, u)
			for v := range a.nodes[u].neighbors {
				if !visited[v] {
					visited[v] = true
					stack = append(stack, v)
				}
			}
		}
		sort.Ints(comp)
		comps = append(comps, comp)
	}
	return comps
}

// density is the share of possible ordered pairs inside the component
// that carry at least one edge. Every outbound target of a member sits
// in the same component, so the member sets alone suffice.
func (a *arena) density(comp []int) float64 {
	n := len(comp)
	if n < 2 {
		return 0
	}
	pairs := 0
	for _, u := range comp {
		pairs += len(a.nodes[u].outTargets)
	}
	return float64(pairs) / float64(n*(n-1))
}
