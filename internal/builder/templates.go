package builder

import (
	"fmt"
)

// TemplateDefinition is a named, reusable page layout
type TemplateDefinition struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Thumbnail      string          `json:"thumbnail,omitempty"`
	Widgets        Tree            `json:"widgets"`
	CanvasSettings *CanvasSettings `json:"canvasSettings,omitempty"`
	BuiltIn        bool            `json:"builtIn,omitempty"`
}

// Instantiate returns the template's widgets ready for a canvas: deep
// copied, given fresh ids and stacked vertically if unpositioned.
func (t TemplateDefinition) Instantiate(newID IDFunc) Tree {
	tree := Clone(t.Widgets)
	for _, n := range tree {
		reassignIDs(n, newID)
	}
	return NormalizeSections(tree)
}

func seedIDs(prefix string) IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func at(n *Node, x, y float64) *Node {
	n.Props["x"] = x
	n.Props["y"] = y
	return n
}

// BuiltInTemplates returns the seed templates shipped with the builder
func BuiltInTemplates() []TemplateDefinition {
	return []TemplateDefinition{
		{
			ID:          "blank",
			Name:        "Blank",
			Description: "An empty canvas",
			Widgets:     Tree{},
			BuiltIn:     true,
		},
		clinicLanding(),
		servicesOverview(),
		appointmentPromo(),
	}
}

func clinicLanding() TemplateDefinition {
	id := seedIDs("clinic-landing")
	return TemplateDefinition{
		ID:          "clinic-landing",
		Name:        "Clinic Landing Page",
		Description: "Hero, services, testimonials and contact details",
		Thumbnail:   "/templates/clinic-landing.png",
		BuiltIn:     true,
		Widgets: Tree{
			at(NewNode(TypeNavbar, id(), Props{"links": []any{"Home", "Services", "Team", "Contact"}}, id), 0, 0),
			at(NewNode(TypeHeading, id(), Props{"text": "Healthy smiles start here", "level": 1, "width": 800}, id), 40, 100),
			at(NewNode(TypeText, id(), Props{"text": "Family and cosmetic dentistry in a calm, modern clinic.", "width": 800}, id), 40, 180),
			at(NewNode(TypeButton, id(), Props{"label": "Book an appointment", "href": "#booking", "width": 220}, id), 40, 300),
			at(NewNode(TypeSection, id(), Props{"columns": 3}, id), 0, 380),
			at(NewNode(TypeTestimonial, id(), Props{"quote": "The best dental visit I've had.", "author": "A happy patient"}, id), 40, 820),
			at(NewNode(TypeContactInfo, id(), Props{"phone": "(555) 010-2030", "email": "hello@clinic.example"}, id), 600, 820),
			at(NewNode(TypeFooter, id(), Props{"text": "© Bright Smiles Dental"}, id), 0, 1080),
		},
	}
}

// servicesOverview has no positions; widgets are stacked on apply
func servicesOverview() TemplateDefinition {
	id := seedIDs("services-overview")
	return TemplateDefinition{
		ID:          "services-overview",
		Name:        "Services Overview",
		Description: "A single column listing treatments and prices",
		BuiltIn:     true,
		Widgets: Tree{
			{ID: id(), Type: TypeHeading, Props: Props{"text": "Our services", "level": 1}},
			{ID: id(), Type: TypeTable, Props: Props{"rows": []any{
				[]any{"Cleaning", "$90"},
				[]any{"Whitening", "$220"},
				[]any{"Crown", "$950"},
			}}},
			{ID: id(), Type: TypeImage, Props: Props{"src": "/images/clinic.jpg", "alt": "Treatment room"}},
			{ID: id(), Type: TypeCTA, Props: Props{"title": "Not sure what you need?", "buttonLabel": "Ask us"}},
		},
	}
}

func appointmentPromo() TemplateDefinition {
	id := seedIDs("appointment-promo")
	settings := DefaultCanvasSettings()
	settings.Background = "#f0fdfa"
	settings.MinHeight = 600
	return TemplateDefinition{
		ID:             "appointment-promo",
		Name:           "Appointment Promo",
		Description:    "Seasonal check-up promotion with a countdown and booking form",
		CanvasSettings: &settings,
		BuiltIn:        true,
		Widgets: Tree{
			at(NewNode(TypeAlert, id(), Props{"message": "Spring check-ups: 20% off until April 30", "variant": "success"}, id), 40, 0),
			at(NewNode(TypeHeading, id(), Props{"text": "Time for your check-up"}, id), 40, 80),
			at(NewNode(TypeCountdown, id(), Props{"target": "2025-04-30T23:59:59Z"}, id), 40, 160),
			at(NewNode(TypeForm, id(), Props{"fields": []any{"name", "phone", "preferredDate"}, "submitLabel": "Request a slot"}, id), 40, 300),
		},
	}
}
