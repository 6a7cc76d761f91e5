package domain

import "fmt"

var ladderLabels = map[Status]string{
	StatusScheduled:  "Trabajo agendado",
	StatusInProgress: "Trabajo en curso",
	StatusCompleted:  "Trabajo finalizado",
}

var statusLabels = map[Status]string{
	StatusPublished:  "publicada",
	StatusMatched:    "con candidatos",
	StatusQuoted:     "cotizada",
	StatusDirectSent: "invitación enviada",
	StatusSelected:   "técnico elegido",
	StatusScheduled:  "agendada",
	StatusInProgress: "en curso",
	StatusCompleted:  "finalizada",
	StatusCancelled:  "cancelada",
}

func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func LabelCreated(r Request) string {
	if r.Mode == ModeDirect && r.Target != nil {
		return fmt.Sprintf("Invitación directa enviada a %s", r.Target.Name)
	}
	return "Solicitud publicada"
}

func LabelOpenMarketplace() string { return "Solicitud publicada en el marketplace" }

func LabelDirectExpired() string {
	return "La invitación directa venció; la solicitud pasó al marketplace"
}

func LabelDirectAccepted(name string) string {
	return fmt.Sprintf("%s aceptó la invitación directa", name)
}

func LabelDirectRejected(name string) string {
	if name == "" {
		return "Invitación directa rechazada; la solicitud pasó al marketplace"
	}
	return fmt.Sprintf("%s rechazó la invitación directa; la solicitud pasó al marketplace", name)
}

func LabelMatchesFound(n int) string {
	if n == 1 {
		return "Encontramos 1 técnico compatible"
	}
	return fmt.Sprintf("Encontramos %d técnicos compatibles", n)
}

func LabelNoTechnicians() string { return "No se encontraron técnicos disponibles" }

func LabelSelected(name string) string { return fmt.Sprintf("Elegiste a %s", name) }

func LabelAdvanced(to Status) string { return ladderLabels[to] }

func LabelCancelled() string { return "Solicitud cancelada" }

func LabelManualStatus(to Status) string {
	return fmt.Sprintf("Estado cambiado manualmente a %s", to.Label())
}

func LabelQuoteAccepted(m Match) string {
	if m.Price != nil && m.ETAHours != nil {
		return fmt.Sprintf("Aceptaste la cotización de %s: $%s en %d h", m.TechnicianName, m.Price.StringFixed(2), *m.ETAHours)
	}
	return fmt.Sprintf("Aceptaste a %s", m.TechnicianName)
}

func LabelQuoteRejected(m Match, reason *string) string {
	if reason != nil && *reason != "" {
		return fmt.Sprintf("Rechazaste la cotización de %s: %s", m.TechnicianName, *reason)
	}
	return fmt.Sprintf("Rechazaste la cotización de %s", m.TechnicianName)
}

func LabelCounterOffer(m Match, o Offer) string {
	return fmt.Sprintf("Contraoferta a %s: $%s en %d h", m.TechnicianName, o.Price.StringFixed(2), o.ETAHours)
}

func LabelQuoteSubmitted(m Match, o Offer) string {
	return fmt.Sprintf("%s cotizó $%s en %d h", m.TechnicianName, o.Price.StringFixed(2), o.ETAHours)
}
