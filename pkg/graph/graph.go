// Package graph derives the field dependency graph of a form schema.
//
// An edge runs from every field a condition reads to the field that owns the
// condition, so that a change to one field identifies every field whose
// flags must be recomputed. Cycles are detected once, at build time, with
// Tarjan's strongly connected components algorithm; the members of a cycle
// are evaluated at most once per pass against transaction-start values.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-formengine/pkg/schema"
)

// RuleKind identifies which flag a rule drives.
type RuleKind string

const (
	RuleVisible  RuleKind = "visible"
	RuleRequired RuleKind = "required"
	RuleDisabled RuleKind = "disabled"
)

// Rule is a single condition attached to a field, in declaration order.
type Rule struct {
	Kind      RuleKind
	Condition schema.Condition
	Origin    string
}

// Graph is immutable once built and safe for concurrent reads.
type Graph struct {
	idx *schema.Index

	rules            map[string][]Rule
	dependents       map[string][]string
	dependencies     map[string][]string
	lookupDependents map[string][]string

	component  map[string]int
	components [][]string
	cyclic     map[string]bool
	rank       map[string]int
	order      []string

	warnings []Warning
}

// Build derives the graph for idx. Problems that do not prevent evaluation
// (unknown references, cycles, conflicting rules) are recorded as warnings
// and logged at warn level.
func Build(idx *schema.Index, log zerolog.Logger) *Graph {
	g := &Graph{
		idx:              idx,
		rules:            make(map[string][]Rule),
		dependents:       make(map[string][]string),
		dependencies:     make(map[string][]string),
		lookupDependents: make(map[string][]string),
		component:        make(map[string]int),
		cyclic:           make(map[string]bool),
		rank:             make(map[string]int),
	}

	g.collectRules()
	g.linkConditions()
	g.linkLookups()
	g.flagConflicts()
	g.strongComponents()
	g.sortComponents()

	for _, w := range g.warnings {
		log.Warn().
			Str("form_id", idx.FormID()).
			Str("field", w.Field).
			Str("kind", string(w.Kind)).
			Msg(w.Message)
	}
	return g
}

func (g *Graph) collectRules() {
	for _, id := range g.idx.IDs() {
		field, _ := g.idx.Field(id)
		prefix := "fields." + id + ".logic."
		if field.Logic.Visible != nil {
			g.rules[id] = append(g.rules[id], Rule{RuleVisible, field.Logic.Visible.When, prefix + "visible"})
		}
		if field.Logic.Required != nil {
			g.rules[id] = append(g.rules[id], Rule{RuleRequired, field.Logic.Required.When, prefix + "required"})
		}
		if field.Logic.Disabled != nil {
			g.rules[id] = append(g.rules[id], Rule{RuleDisabled, field.Logic.Disabled.When, prefix + "disabled"})
		}
	}

	block := g.idx.Schema().Logic
	if block == nil {
		return
	}
	lists := []struct {
		name  string
		rules []schema.ConditionalRule
	}{
		{"conditionalVisibility", block.ConditionalVisibility},
		{"conditionalRequired", block.ConditionalRequired},
		{"conditionalDisabled", block.ConditionalDisabled},
	}
	for _, list := range lists {
		for i, rule := range list.rules {
			target := rule.TargetField
			if !g.idx.Has(target) {
				continue
			}
			origin := fmt.Sprintf("logic.%s[%d]", list.name, i)
			if rule.ShowWhen != nil {
				g.rules[target] = append(g.rules[target], Rule{RuleVisible, *rule.ShowWhen, origin + ".showWhen"})
			}
			if rule.RequireWhen != nil {
				g.rules[target] = append(g.rules[target], Rule{RuleRequired, *rule.RequireWhen, origin + ".requireWhen"})
			}
			if rule.DisableWhen != nil {
				g.rules[target] = append(g.rules[target], Rule{RuleDisabled, *rule.DisableWhen, origin + ".disableWhen"})
			}
		}
	}
}

func (g *Graph) linkConditions() {
	for _, owner := range g.idx.IDs() {
		for _, rule := range g.rules[owner] {
			for _, ref := range rule.Condition.References() {
				if !g.idx.Has(ref) {
					g.warn(Warning{
						Kind:    WarningUnknownReference,
						Field:   owner,
						Ref:     ref,
						Message: fmt.Sprintf("%s references unknown field %q", rule.Origin, ref),
					})
					continue
				}
				g.addEdge(ref, owner)
			}
		}
	}
	for id := range g.dependents {
		g.sortByPosition(g.dependents[id])
	}
	for id := range g.dependencies {
		g.sortByPosition(g.dependencies[id])
	}
}

func (g *Graph) addEdge(from, to string) {
	if contains(g.dependents[from], to) {
		return
	}
	g.dependents[from] = append(g.dependents[from], to)
	g.dependencies[to] = append(g.dependencies[to], from)
}

func (g *Graph) linkLookups() {
	for _, id := range g.idx.IDs() {
		field, _ := g.idx.Field(id)
		if field.LookupRef == "" {
			continue
		}
		def, ok := g.idx.Lookup(field.LookupRef)
		if !ok {
			continue
		}
		for _, ref := range schema.ParamBindings(schema.BoundParams(def, field.LookupParams)) {
			if !g.idx.Has(ref) {
				g.warn(Warning{
					Kind:    WarningUnknownReference,
					Field:   id,
					Ref:     ref,
					Message: fmt.Sprintf("lookup %q param binds unknown field %q", field.LookupRef, ref),
				})
				continue
			}
			if !contains(g.lookupDependents[ref], id) {
				g.lookupDependents[ref] = append(g.lookupDependents[ref], id)
			}
		}
	}
}

func (g *Graph) flagConflicts() {
	for _, id := range g.idx.IDs() {
		seen := make(map[RuleKind][]string)
		for _, rule := range g.rules[id] {
			seen[rule.Kind] = append(seen[rule.Kind], rule.Origin)
		}
		for _, kind := range []RuleKind{RuleVisible, RuleRequired, RuleDisabled} {
			origins := seen[kind]
			if len(origins) < 2 {
				continue
			}
			g.warn(Warning{
				Kind:  WarningConflict,
				Field: id,
				Message: fmt.Sprintf("field %q declares %d %s rules (%s); the last declared rule wins",
					id, len(origins), kind, strings.Join(origins, ", ")),
			})
		}
	}
}

// strongComponents runs Tarjan's algorithm with an explicit call stack.
func (g *Graph) strongComponents() {
	var (
		next    int
		index   = make(map[string]int)
		low     = make(map[string]int)
		onStack = make(map[string]bool)
		stack   []string
	)
	type frame struct {
		id   string
		edge int
	}

	visit := func(id string) {
		index[id] = next
		low[id] = next
		next++
		stack = append(stack, id)
		onStack[id] = true
	}

	for _, root := range g.idx.IDs() {
		if _, seen := index[root]; seen {
			continue
		}
		visit(root)
		calls := []frame{{id: root}}

		for len(calls) > 0 {
			top := &calls[len(calls)-1]
			edges := g.dependents[top.id]
			if top.edge < len(edges) {
				w := edges[top.edge]
				top.edge++
				if _, seen := index[w]; !seen {
					visit(w)
					calls = append(calls, frame{id: w})
					continue
				}
				if onStack[w] {
					low[top.id] = min(low[top.id], index[w])
				}
				continue
			}

			v := top.id
			calls = calls[:len(calls)-1]
			if len(calls) > 0 {
				parent := calls[len(calls)-1].id
				low[parent] = min(low[parent], low[v])
			}
			if low[v] != index[v] {
				continue
			}

			var members []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				members = append(members, w)
				if w == v {
					break
				}
			}
			g.sortByPosition(members)
			id := len(g.components)
			g.components = append(g.components, members)
			for _, member := range members {
				g.component[member] = id
			}

			if len(members) > 1 || contains(g.dependents[v], v) {
				for _, member := range members {
					g.cyclic[member] = true
				}
				g.warn(Warning{
					Kind:    WarningCycle,
					Field:   members[0],
					Cycle:   append([]string(nil), members...),
					Message: fmt.Sprintf("conditions form a cycle between %s; each member is evaluated once per pass", strings.Join(members, ", ")),
				})
			}
		}
	}
}

// sortComponents orders the condensation topologically, breaking ties by
// the declaration position of each component's first field.
func (g *Graph) sortComponents() {
	count := len(g.components)
	indegree := make([]int, count)
	succ := make([]map[int]bool, count)
	for i := range succ {
		succ[i] = make(map[int]bool)
	}
	for from, owners := range g.dependents {
		a := g.component[from]
		for _, to := range owners {
			b := g.component[to]
			if a == b || succ[a][b] {
				continue
			}
			succ[a][b] = true
			indegree[b]++
		}
	}

	head := func(c int) int { return g.idx.Position(g.components[c][0]) }
	var ready []int
	push := func(c int) {
		at := sort.Search(len(ready), func(i int) bool { return head(ready[i]) > head(c) })
		ready = append(ready, 0)
		copy(ready[at+1:], ready[at:])
		ready[at] = c
	}
	for c := 0; c < count; c++ {
		if indegree[c] == 0 {
			push(c)
		}
	}

	g.order = make([]string, 0, g.idx.Len())
	for len(ready) > 0 {
		c := ready[0]
		ready = ready[1:]
		for _, member := range g.components[c] {
			g.rank[member] = len(g.order)
			g.order = append(g.order, member)
		}
		targets := make([]int, 0, len(succ[c]))
		for b := range succ[c] {
			targets = append(targets, b)
		}
		sort.Ints(targets)
		for _, b := range targets {
			indegree[b]--
			if indegree[b] == 0 {
				push(b)
			}
		}
	}
}

func (g *Graph) warn(w Warning) {
	g.warnings = append(g.warnings, w)
}

func (g *Graph) sortByPosition(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		return g.idx.Position(ids[i]) < g.idx.Position(ids[j])
	})
}

// Index returns the schema index the graph was built from.
func (g *Graph) Index() *schema.Index { return g.idx }

// Rules returns the conditions attached to id in declaration order.
func (g *Graph) Rules(id string) []Rule {
	return append([]Rule(nil), g.rules[id]...)
}

// Dependents returns the fields whose conditions read id.
func (g *Graph) Dependents(id string) []string {
	return append([]string(nil), g.dependents[id]...)
}

// Dependencies returns the fields read by id's conditions.
func (g *Graph) Dependencies(id string) []string {
	return append([]string(nil), g.dependencies[id]...)
}

// LookupDependents returns the lookup-backed fields whose params bind id.
func (g *Graph) LookupDependents(id string) []string {
	return append([]string(nil), g.lookupDependents[id]...)
}

// AffectedBy returns ids and every field transitively depending on them, in
// evaluation order. Unknown ids are ignored.
func (g *Graph) AffectedBy(ids ...string) []string {
	seen := make(map[string]bool)
	queue := make([]string, 0, len(ids))
	for _, id := range ids {
		if g.idx.Has(id) && !seen[id] {
			seen[id] = true
			queue = append(queue, id)
		}
	}
	for i := 0; i < len(queue); i++ {
		for _, dep := range g.dependents[queue[i]] {
			if !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	sort.Slice(queue, func(i, j int) bool { return g.rank[queue[i]] < g.rank[queue[j]] })
	return queue
}

// Order returns every field in evaluation order.
func (g *Graph) Order() []string {
	return append([]string(nil), g.order...)
}

// Cyclic reports whether id belongs to a dependency cycle.
func (g *Graph) Cyclic(id string) bool { return g.cyclic[id] }

// Component returns the id of the strongly connected component owning id,
// -1 when unknown.
func (g *Graph) Component(id string) int {
	c, ok := g.component[id]
	if !ok {
		return -1
	}
	return c
}

// Cycles returns the members of every cycle, each in declaration order.
func (g *Graph) Cycles() [][]string {
	var out [][]string
	for _, members := range g.components {
		if g.cyclic[members[0]] {
			out = append(out, append([]string(nil), members...))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return g.idx.Position(out[i][0]) < g.idx.Position(out[j][0])
	})
	return out
}

// Warnings returns the problems recorded while building the graph.
func (g *Graph) Warnings() []Warning {
	return append([]Warning(nil), g.warnings...)
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
