package promptbuilder

import (
	"fmt"
	"strings"

	"github.com/azraeltruthsay/gaia/packet"
)

// dataField looks up a named entry in the packet's extensibility
// fields, returning its raw value and whether it was present.
func dataField(p *packet.CognitionPacket, key string) (interface{}, bool) {
	for _, f := range p.Content.DataFields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

func dataFieldString(p *packet.CognitionPacket, key string) string {
	v, ok := dataField(p, key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// identityBlock is Tier 1: immutable identity plus persona traits,
// mapped from the "identity_excerpt" data field if the orchestrator
// attached one.
func identityBlock(p *packet.CognitionPacket) string {
	excerpt := dataFieldString(p, "identity_excerpt")
	if excerpt == "" {
		return ""
	}
	traits := strings.Join(p.Header.Persona.Traits, ", ")
	if traits == "" {
		return excerpt
	}
	return fmt.Sprintf("%s\nTraits: %s", excerpt, traits)
}

// personaAnchor is Tier 2.
func personaAnchor(p *packet.CognitionPacket) string {
	role := string(p.Header.Persona.Role)
	if role == "" {
		role = "default"
	}
	anchor := fmt.Sprintf("You are GAIA. Current role: %s.", role)
	if p.Header.Persona.ToneHint != "" {
		anchor += " Tone: " + p.Header.Persona.ToneHint + "."
	}
	if toolSummary := dataFieldString(p, "mcp_capability_summary"); toolSummary != "" {
		anchor += "\nAvailable tools: " + toolSummary
	}
	return anchor
}

// knowledgeBaseBlock is Tier 8. domainKnowledge is truncated to
// maxDomainKnowledgeChars so one oversized field can't blow the budget
// before the remaining-budget accounting even runs.
const maxDomainKnowledgeChars = 2000

func knowledgeBaseBlock(p *packet.CognitionPacket) (kb, domain string) {
	kb = dataFieldString(p, "knowledge_base_name")
	if kb == "" {
		return "", ""
	}
	domain = dataFieldString(p, "domain_knowledge")
	if len(domain) > maxDomainKnowledgeChars {
		domain = domain[:maxDomainKnowledgeChars] + "…"
	}
	return kb, domain
}

// ProbeCollectionSummary is one collection's worth of a rendered
// probe tier, in the shape the orchestrator attaches as
// content.data_fields["probe_summary"].
type ProbeCollectionSummary struct {
	Collection string
	Primary    bool
	Phrases    []string
}

// semanticProbeSummary is Tier 9: grouped by collection, primary first.
func semanticProbeSummary(p *packet.CognitionPacket) string {
	v, ok := dataField(p, "probe_summary")
	if !ok {
		return ""
	}
	summaries, ok := v.([]ProbeCollectionSummary)
	if !ok || len(summaries) == 0 {
		return ""
	}

	ordered := make([]ProbeCollectionSummary, 0, len(summaries))
	for _, s := range summaries {
		if s.Primary {
			ordered = append(ordered, s)
		}
	}
	for _, s := range summaries {
		if !s.Primary {
			ordered = append(ordered, s)
		}
	}

	var b strings.Builder
	b.WriteString("Semantic probe matches:\n")
	for _, s := range ordered {
		b.WriteString(fmt.Sprintf("- %s: %s\n", s.Collection, strings.Join(s.Phrases, ", ")))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RetrievedDocument is one document surfaced by RAG, in the shape the
// orchestrator attaches as content.data_fields["retrieved_documents"].
type RetrievedDocument struct {
	Source  string
	Excerpt string
}

// retrievedDocumentsBlock is Tier 10: retrieved documents plus a
// post-retrieval directive, or, if a KB was configured but nothing
// came back, an explicit no-fabrication directive instead.
func retrievedDocumentsBlock(p *packet.CognitionPacket) string {
	kb := dataFieldString(p, "knowledge_base_name")
	v, _ := dataField(p, "retrieved_documents")
	docs, _ := v.([]RetrievedDocument)

	if len(docs) > 0 {
		var b strings.Builder
		b.WriteString("Retrieved documents:\n")
		for _, d := range docs {
			b.WriteString(fmt.Sprintf("[%s]\n%s\n\n", d.Source, d.Excerpt))
		}
		b.WriteString("Use only the documents above as knowledge-base fact. Cite the source name when you draw from one.")
		return b.String()
	}

	if kb != "" {
		return "No documents were retrieved from the configured knowledge base for this turn. Do not invent document content; say the knowledge base had no relevant match."
	}
	return ""
}

// memoryHelperHints is Tier 11, shown only when tools are available
// and the prompt isn't in compact mode (callers already gate compact).
func memoryHelperHints(p *packet.CognitionPacket) string {
	toolSummary := dataFieldString(p, "mcp_capability_summary")
	if toolSummary == "" {
		return ""
	}
	return "You may use the memory tool to recall or store facts relevant to this session."
}

// cheatsheetsBlock is Tier 12.
func cheatsheetsBlock(p *packet.CognitionPacket) string {
	if len(p.Context.Cheatsheets) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Reference cheatsheets:\n")
	for _, c := range p.Context.Cheatsheets {
		b.WriteString(fmt.Sprintf("- %s (%s)\n", c.Title, c.Pointer))
		for _, rule := range c.ProtocolRules {
			b.WriteString("  * " + rule + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderPacketContext is Tier 13: the full cognition-packet rendering,
// lowest priority of all the detail tiers.
func renderPacketContext(p *packet.CognitionPacket) string {
	return fmt.Sprintf(
		"Turn context: intent=%s confidence=%.2f origin=%s session=%s",
		p.Intent.UserIntent, p.Intent.Confidence, p.Header.Origin, p.Header.SessionID,
	)
}

// loopRecoveryContext is Tier 14, present only when the previous turn
// was aborted by loop detection.
func loopRecoveryContext(p *packet.CognitionPacket) string {
	if !dataFieldBool(p, "prior_turn_loop_aborted") {
		return ""
	}
	return "The previous attempt at this turn was stopped for repeating itself. Produce a materially different response this time."
}

func dataFieldBool(p *packet.CognitionPacket, key string) bool {
	v, ok := dataField(p, key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
