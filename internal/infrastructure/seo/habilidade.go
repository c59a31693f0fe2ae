package seo

// Fixed element IDs shared with the web client. The ID doubles as the
// duplicate-injection guard.
const (
	OrganizationSchemaID = "organization-schema"
	FAQSchemaID          = "faq-schema"
)

// OrganizationSchema returns the EducationalOrganization JSON-LD payload,
// course catalog included.
func OrganizationSchema() map[string]any {
	return map[string]any{
		"@context":    "https://schema.org",
		"@type":       "EducationalOrganization",
		"name":        "Escola Habilidade",
		"url":         "https://www.escolahabilidade.com",
		"logo":        "https://www.escolahabilidade.com/logo.png",
		"description": "Escola de cursos profissionalizantes em São José SC. Informática, programação, design e marketing digital.",
		"address": map[string]any{
			"@type":           "PostalAddress",
			"addressLocality": "São José",
			"addressRegion":   "SC",
			"addressCountry":  "BR",
		},
		"hasOfferCatalog": map[string]any{
			"@type": "OfferCatalog",
			"name":  "Cursos Profissionalizantes",
			"itemListElement": []map[string]any{
				courseOffer("Informática", "Curso completo de informática: Windows, Office e ferramentas essenciais."),
				courseOffer("Programação", "Lógica de programação, Python e desenvolvimento web."),
				courseOffer("Design Gráfico", "Photoshop, Illustrator e identidade visual."),
				courseOffer("Marketing Digital", "Redes sociais, tráfego pago e estratégia de conteúdo."),
				courseOffer("Inteligência Artificial", "Ferramentas de IA aplicadas ao trabalho e aos estudos."),
				courseOffer("Projetista 3D", "SketchUp, AutoCAD e modelagem BIM."),
			},
		},
	}
}

// FAQSchema returns the FAQPage JSON-LD payload.
func FAQSchema() map[string]any {
	return map[string]any{
		"@context": "https://schema.org",
		"@type":    "FAQPage",
		"mainEntity": []map[string]any{
			faqEntry(
				"Onde fica a Escola Habilidade?",
				"A Escola Habilidade fica em São José SC, na Grande Florianópolis, com fácil acesso para alunos de Palhoça e Biguaçu.",
			),
			faqEntry(
				"Os cursos têm certificado?",
				"Sim, todos os cursos emitem certificado de conclusão reconhecido no mercado.",
			),
			faqEntry(
				"Quais são as formas de pagamento?",
				"Aceitamos cartão de crédito, boleto e Pix, com opções de parcelamento.",
			),
			faqEntry(
				"Preciso de experiência prévia?",
				"Não. Os cursos partem do básico e avançam gradualmente com acompanhamento individual.",
			),
		},
	}
}

func courseOffer(name, description string) map[string]any {
	return map[string]any{
		"@type": "Offer",
		"itemOffered": map[string]any{
			"@type":       "Course",
			"name":        name,
			"description": description,
			"provider": map[string]any{
				"@type": "EducationalOrganization",
				"name":  "Escola Habilidade",
			},
		},
	}
}

func faqEntry(question, answer string) map[string]any {
	return map[string]any{
		"@type": "Question",
		"name":  question,
		"acceptedAnswer": map[string]any{
			"@type": "Answer",
			"text":  answer,
		},
	}
}
