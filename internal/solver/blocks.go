package solver

import "market-clearing/internal/dispatch"

// block is a set of variables and the constraints over them that share no
// constraint with the rest of the model.
type block struct {
	vars []int
	cons []int
}

// splitBlocks partitions m into independent blocks, ordered by their first
// variable. m must be valid.
func splitBlocks(m *dispatch.Model) []block {
	parent := make([]int, len(m.Variables))
	for j := range parent {
		parent[j] = j
	}
	find := func(j int) int {
		for parent[j] != j {
			parent[j] = parent[parent[j]]
			j = parent[j]
		}
		return j
	}
	for _, c := range m.Constraints {
		root := find(c.Terms[0].Var)
		for _, t := range c.Terms[1:] {
			if r := find(t.Var); r != root {
				parent[r] = root
			}
		}
	}

	index := make(map[int]int)
	var out []block
	for j := range m.Variables {
		r := find(j)
		k, ok := index[r]
		if !ok {
			k = len(out)
			index[r] = k
			out = append(out, block{})
		}
		out[k].vars = append(out[k].vars, j)
	}
	for i, c := range m.Constraints {
		k := index[find(c.Terms[0].Var)]
		out[k].cons = append(out[k].cons, i)
	}
	return out
}

// model extracts the block as a standalone model with local indices.
func (b block) model(m *dispatch.Model) *dispatch.Model {
	local := make(map[int]int, len(b.vars))
	sub := &dispatch.Model{Variables: make([]dispatch.Variable, len(b.vars))}
	for k, j := range b.vars {
		local[j] = k
		sub.Variables[k] = m.Variables[j]
	}
	for _, t := range m.Objective {
		if k, ok := local[t.Var]; ok {
			sub.Objective = append(sub.Objective, dispatch.Term{Var: k, Coef: t.Coef})
		}
	}
	for _, i := range b.cons {
		c := m.Constraints[i]
		terms := make([]dispatch.Term, len(c.Terms))
		for n, t := range c.Terms {
			terms[n] = dispatch.Term{Var: local[t.Var], Coef: t.Coef}
		}
		c.Terms = terms
		sub.Constraints = append(sub.Constraints, c)
	}
	return sub
}
