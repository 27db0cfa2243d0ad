// Package blueprint implements GAIA's service self-description schema
// and registry: candidate (prescriptive/discovered) and live
// (validated) blueprints sharing one schema, stored as YAML with a
// derived sibling Markdown rendering, and the graph-topology
// derivation that treats edges as a pure function of the current live
// blueprint set rather than cached state.
package blueprint

// Status is the blueprint's epistemic state: CANDIDATE (unvalidated,
// never rendered in the live graph) or LIVE (validated, descriptive).
type Status string

const (
	StatusCandidate Status = "candidate"
	StatusLive      Status = "live"
)

// ServiceStatus is the runtime status of the described service.
type ServiceStatus string

const (
	ServiceStatusLive       ServiceStatus = "live"
	ServiceStatusCandidate  ServiceStatus = "candidate"
	ServiceStatusDeprecated ServiceStatus = "deprecated"
)

// Severity classifies a FailureMode's impact.
type Severity string

const (
	SeverityDegraded Severity = "degraded"
	SeverityPartial  Severity = "partial"
	SeverityFatal    Severity = "fatal"
)

// Confidence is a per-section epistemic confidence level.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Direction is an Interface's flow direction.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// TransportType enumerates the transports an Interface may declare.
type TransportType string

const (
	TransportHTTPRest    TransportType = "http_rest"
	TransportWebSocket   TransportType = "websocket"
	TransportSSE         TransportType = "sse"
	TransportEvent       TransportType = "event"
	TransportDirectCall  TransportType = "direct_call"
	TransportMCP         TransportType = "mcp"
	TransportGRPC        TransportType = "grpc"
	TransportNegotiated  TransportType = "negotiated"
)

// Interface is a directional endpoint of a service. Exactly one of
// the transport-specific fields is populated according to Transport,
// except for negotiated transports where Negotiated carries the set.
type Interface struct {
	ID        string        `yaml:"id" json:"id"`
	Direction Direction     `yaml:"direction" json:"direction"`
	Transport TransportType `yaml:"transport" json:"transport"`

	// http_rest / sse / websocket
	Path   string `yaml:"path,omitempty" json:"path,omitempty"`
	Method string `yaml:"method,omitempty" json:"method,omitempty"`
	// sse
	Events []string `yaml:"events,omitempty" json:"events,omitempty"`
	// websocket
	Protocol string `yaml:"protocol,omitempty" json:"protocol,omitempty"`
	// event
	Topic string `yaml:"topic,omitempty" json:"topic,omitempty"`
	// direct_call
	Symbol string `yaml:"symbol,omitempty" json:"symbol,omitempty"`
	// mcp
	TargetService string   `yaml:"target_service,omitempty" json:"target_service,omitempty"`
	Methods       []string `yaml:"methods,omitempty" json:"methods,omitempty"`
	// grpc
	Proto   string `yaml:"proto,omitempty" json:"proto,omitempty"`
	RPC     string `yaml:"rpc,omitempty" json:"rpc,omitempty"`
	Service string `yaml:"service,omitempty" json:"service,omitempty"`

	// negotiated: multiple transports with one preferred
	Negotiated *NegotiatedTransport `yaml:"negotiated,omitempty" json:"negotiated,omitempty"`
}

// NegotiatedTransport lets one interface carry several transport legs
// with a preferred leg, enabling "REST today, gRPC tomorrow" edges.
type NegotiatedTransport struct {
	Preferred TransportType `yaml:"preferred" json:"preferred"`
	Legs      []Interface   `yaml:"legs" json:"legs"`
}

// resolved returns the interface that should participate in matching:
// itself, or (for a negotiated transport) the preferred leg.
func (i Interface) resolved() Interface {
	if i.Transport == TransportNegotiated && i.Negotiated != nil {
		for _, leg := range i.Negotiated.Legs {
			if leg.Transport == i.Negotiated.Preferred {
				return leg
			}
		}
	}
	return i
}

// ServiceDependency names another service this one requires or falls back to.
type ServiceDependency struct {
	Service  string `yaml:"service" json:"service"`
	Required bool   `yaml:"required" json:"required"`
	Fallback string `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

// VolumeAccess is a volume dependency's access mode.
type VolumeAccess string

const (
	VolumeReadOnly  VolumeAccess = "ro"
	VolumeReadWrite VolumeAccess = "rw"
)

// VolumeDependency names a mounted volume this service needs.
type VolumeDependency struct {
	Path   string       `yaml:"path" json:"path"`
	Access VolumeAccess `yaml:"access" json:"access"`
}

// ExternalAPIDependency names a third-party API this service calls.
type ExternalAPIDependency struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`
}

// Dependencies bundles every external thing a service relies on.
type Dependencies struct {
	Services    []ServiceDependency      `yaml:"services,omitempty" json:"services,omitempty"`
	Volumes     []VolumeDependency       `yaml:"volumes,omitempty" json:"volumes,omitempty"`
	ExternalAPIs []ExternalAPIDependency `yaml:"external_apis,omitempty" json:"external_apis,omitempty"`
}

// SourceFile names one file implementing part of this service and
// the role it plays, used by validation's "source file exists" check.
type SourceFile struct {
	Path string `yaml:"path" json:"path"`
	Role string `yaml:"role,omitempty" json:"role,omitempty"`
}

// FailureMode documents one known way this service degrades.
type FailureMode struct {
	Condition string   `yaml:"condition" json:"condition"`
	Response  string   `yaml:"response" json:"response"`
	Severity  Severity `yaml:"severity" json:"severity"`
}

// Intent carries the service's design rationale.
type Intent struct {
	Purpose        string   `yaml:"purpose,omitempty" json:"purpose,omitempty"`
	DesignDecisions []string `yaml:"design_decisions,omitempty" json:"design_decisions,omitempty"`
	OpenQuestions  []string `yaml:"open_questions,omitempty" json:"open_questions,omitempty"`
	CognitiveRole  string   `yaml:"cognitive_role,omitempty" json:"cognitive_role,omitempty"`
}

// InternalComponent is one node in a service's internal architecture diagram.
type InternalComponent struct {
	Name string `yaml:"name" json:"name"`
	Role string `yaml:"role,omitempty" json:"role,omitempty"`
}

// InternalEdge is one edge between two InternalComponents.
type InternalEdge struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// Architecture is a service's internal component graph.
type Architecture struct {
	Components []InternalComponent `yaml:"components,omitempty" json:"components,omitempty"`
	Edges      []InternalEdge      `yaml:"edges,omitempty" json:"edges,omitempty"`
}

// SectionConfidence records the epistemic confidence of one blueprint section.
type SectionConfidence struct {
	Section    string     `yaml:"section" json:"section"`
	Confidence Confidence `yaml:"confidence" json:"confidence"`
}

// Meta carries the blueprint's provenance and validation bookkeeping.
type Meta struct {
	Status           Status              `yaml:"status" json:"status"`
	Genesis          bool                `yaml:"genesis,omitempty" json:"genesis,omitempty"`
	GeneratedBy      string              `yaml:"generated_by,omitempty" json:"generated_by,omitempty"`
	CreatedAt        string              `yaml:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt        string              `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
	PromotedAt       string              `yaml:"promoted_at,omitempty" json:"promoted_at,omitempty"`
	Confidences      []SectionConfidence `yaml:"confidences,omitempty" json:"confidences,omitempty"`
	ReflectionNotes  string              `yaml:"reflection_notes,omitempty" json:"reflection_notes,omitempty"`
	DivergenceScore  *float64            `yaml:"divergence_score,omitempty" json:"divergence_score,omitempty"`
}

// Runtime describes how the service is deployed.
type Runtime struct {
	Port         int      `yaml:"port,omitempty" json:"port,omitempty"`
	Image        string   `yaml:"image,omitempty" json:"image,omitempty"`
	GPU          bool     `yaml:"gpu,omitempty" json:"gpu,omitempty"`
	Replicas     int      `yaml:"replicas,omitempty" json:"replicas,omitempty"`
	HealthCheck  string   `yaml:"health_check,omitempty" json:"health_check,omitempty"`
	Capabilities []string `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
}

// Blueprint is a service's self-description. The directory it is
// loaded from or saved to — not Meta.Status — is authoritative over
// whether it is a candidate or live blueprint; see Registry.Save.
type Blueprint struct {
	ID            string        `yaml:"id" json:"id"`
	Version       string        `yaml:"version" json:"version"`
	Role          string        `yaml:"role,omitempty" json:"role,omitempty"`
	ServiceStatus ServiceStatus `yaml:"service_status" json:"service_status"`
	Runtime       Runtime       `yaml:"runtime,omitempty" json:"runtime,omitempty"`
	Interfaces    []Interface   `yaml:"interfaces,omitempty" json:"interfaces,omitempty"`
	Dependencies  Dependencies  `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	SourceFiles   []SourceFile  `yaml:"source_files,omitempty" json:"source_files,omitempty"`
	FailureModes  []FailureMode `yaml:"failure_modes,omitempty" json:"failure_modes,omitempty"`
	Intent        Intent        `yaml:"intent,omitempty" json:"intent,omitempty"`
	Architecture  Architecture  `yaml:"architecture,omitempty" json:"architecture,omitempty"`
	Meta          Meta          `yaml:"meta" json:"meta"`
}

// InboundInterfaces returns the subset of Interfaces flowing in.
func (b *Blueprint) InboundInterfaces() []Interface {
	var out []Interface
	for _, i := range b.Interfaces {
		if i.Direction == DirectionInbound {
			out = append(out, i)
		}
	}
	return out
}

// OutboundInterfaces returns the subset of Interfaces flowing out.
func (b *Blueprint) OutboundInterfaces() []Interface {
	var out []Interface
	for _, i := range b.Interfaces {
		if i.Direction == DirectionOutbound {
			out = append(out, i)
		}
	}
	return out
}
