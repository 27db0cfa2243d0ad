package blueprint

// Edge is one derived topology edge between two live services. Edges
// are never stored — DeriveGraphTopology recomputes them on every
// call from the current live blueprint set, per spec.md §4.2's
// "Graph edges are derived, never stored" rule and Design Note §9.
type Edge struct {
	FromService     string        `json:"from_service"`
	ToService       string        `json:"to_service"`
	InterfaceIDFrom string        `json:"interface_id_from"`
	InterfaceIDTo   string        `json:"interface_id_to"`
	Transport       TransportType `json:"transport"`
}

// Topology is the derived graph over a set of live blueprints.
type Topology struct {
	Edges []Edge `json:"edges"`
}

// InterfacesMatch implements the spec.md §4.2 matching table: two
// interfaces form an edge iff one is outbound and the other inbound
// (direction is a hard constraint, not a preference) and their
// transports agree on the transport-specific identity:
//
//	http_rest, sse, websocket -> identical path
//	event                     -> identical topic
//	grpc                      -> identical rpc name
//	direct_call               -> identical symbol
//	mcp                       -> non-empty method-list intersection
//
// NegotiatedTransport resolves to its preferred leg before matching.
func InterfacesMatch(out, in Interface) bool {
	out = out.resolved()
	in = in.resolved()

	if out.Direction != DirectionOutbound || in.Direction != DirectionInbound {
		return false
	}
	if out.Transport != in.Transport {
		return false
	}

	switch out.Transport {
	case TransportHTTPRest, TransportSSE, TransportWebSocket:
		return out.Path != "" && out.Path == in.Path
	case TransportEvent:
		return out.Topic != "" && out.Topic == in.Topic
	case TransportGRPC:
		return out.RPC != "" && out.RPC == in.RPC
	case TransportDirectCall:
		return out.Symbol != "" && out.Symbol == in.Symbol
	case TransportMCP:
		return methodSetsOverlap(out.Methods, in.Methods)
	default:
		return false
	}
}

func methodSetsOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, m := range a {
		set[m] = true
	}
	for _, m := range b {
		if set[m] {
			return true
		}
	}
	return false
}

// DeriveGraphTopology computes the edge set for a set of live
// blueprints: an edge A->B exists iff A has an outbound interface and
// B has an inbound interface that InterfacesMatch. Self-edges
// (A->A) are never produced even if a service's own outbound and
// inbound interfaces would otherwise match.
func DeriveGraphTopology(blueprints []*Blueprint) Topology {
	var edges []Edge
	for _, a := range blueprints {
		for _, b := range blueprints {
			if a.ID == b.ID {
				continue
			}
			for _, out := range a.OutboundInterfaces() {
				for _, in := range b.InboundInterfaces() {
					if InterfacesMatch(out, in) {
						edges = append(edges, Edge{
							FromService:     a.ID,
							ToService:       b.ID,
							InterfaceIDFrom: out.ID,
							InterfaceIDTo:   in.ID,
							Transport:       out.resolved().Transport,
						})
					}
				}
			}
		}
	}
	return Topology{Edges: edges}
}
