package transform

// Plan is the insertion-ordered combination of the steps of several named
// transforms. Re-adding a type replaces its params but keeps its position.
type Plan struct {
	order  []string
	params map[string]Params
}

func Merge(named []Named) Plan {
	p := Plan{params: make(map[string]Params)}
	for _, n := range named {
		for _, step := range n.Steps {
			p.put(step.Type, step.Params)
		}
	}
	return p
}

func (p *Plan) put(typ string, params Params) {
	if typ == "" {
		return
	}
	if params == nil {
		params = Params{}
	}
	if _, ok := p.params[typ]; !ok {
		p.order = append(p.order, typ)
	}
	p.params[typ] = params
}

func (p Plan) Types() []string { return append([]string(nil), p.order...) }

func (p Plan) Len() int { return len(p.order) }

// Params returns the params for typ, or an empty set when the plan does not
// contain it.
func (p Plan) Params(typ string) Params {
	if params, ok := p.params[typ]; ok {
		return params
	}
	return Params{}
}
