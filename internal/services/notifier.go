package services

import (
	"psyeval/internal/models"

	"go.uber.org/zap"
)

// Notifier is a placeholder for a real outbound notification channel. The
// live UI gets its updates from the event bus; this covers the out-of-band
// side (mail to the operator when work lands on their desk).
type Notifier struct {
	log *zap.Logger
}

func NewNotifier(log *zap.Logger) *Notifier {
	return &Notifier{log: log}
}

// CaseAssigned notifies an operator that a case was assigned to them.
func (n *Notifier) CaseAssigned(operator *models.User, c *models.Case) {
	if operator == nil || c == nil {
		return
	}
	n.log.Info("Notifying operator of case assignment",
		zap.String("to", operator.Email),
		zap.String("caso_id", c.ID.String()),
	)
	// A real deployment would push through SMTP or a messaging provider;
	// the log line stands in for that delivery.
}

// CaseCompleted notifies the case creator that every test finished.
func (n *Notifier) CaseCompleted(creator *models.User, c *models.Case) {
	if creator == nil || c == nil {
		return
	}
	n.log.Info("Notifying creator of case completion",
		zap.String("to", creator.Email),
		zap.String("caso_id", c.ID.String()),
	)
}
