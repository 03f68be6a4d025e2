package classify

import (
	"fmt"
	"strings"

	"github.com/joelkehle/legalquote/internal/intake"
	"github.com/joelkehle/legalquote/internal/ratecard"
)

const defaultInstructions = "You are the intake assistant of a law firm. You read a prospective client's description " +
	"of a legal problem and pick the practice area and service that best match it, using only the options you are given. " +
	"Reply with plain text on a single line, without explanation."

// BuildPrompt renders the user prompt. The output depends only on its inputs,
// so a retried call sends the identical prompt.
func BuildPrompt(req intake.Request, catalog *ratecard.Catalog) string {
	var options strings.Builder
	for _, d := range catalog.Domains() {
		names := make([]string, 0, len(d.Services))
		for _, s := range d.Services {
			names = append(names, s.Name)
		}
		fmt.Fprintf(&options, "%s: %s\n", d.Name, strings.Join(names, ", "))
	}

	var b strings.Builder
	b.WriteString("Analyze the following question and identify the legal domain and the most relevant service among the options given.\n\n")
	fmt.Fprintf(&b, "Question: %s\n", req.Text)
	fmt.Fprintf(&b, "Client type: %s\n", req.ClientType.Label())
	fmt.Fprintf(&b, "Urgency: %s\n\n", req.Urgency.Label())
	b.WriteString("Domain and service options:\n")
	b.WriteString(options.String())
	b.WriteString("\nReply with the domain, the most relevant service, and a confidence score between 0 and 100, separated by commas. ")
	b.WriteString("Copy the domain and service exactly as written in the options.\n")
	b.WriteString("Example: Droit du travail, Licenciement, 85")
	return b.String()
}
