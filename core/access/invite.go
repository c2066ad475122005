package access

import (
	"net/mail"

	"github.com/trezcool/sistira/core"
	"github.com/trezcool/sistira/core/user"
)

// Invitation notifies Users newly added to a shared resource.
type Invitation struct {
	Inviter  user.User
	Invitees []user.Summary
	Role     string // collaborator | participant
	Kind     string // question bank | exam | room
	Title    string
	Path     string // frontend path of the resource
}

// Messages returns one invitation email per invitee, skipping the inviter.
func (inv Invitation) Messages() []*core.EmailMessage {
	msgs := make([]*core.EmailMessage, 0, len(inv.Invitees))
	for _, u := range inv.Invitees {
		if u.ID == inv.Inviter.ID {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: u.Name, Address: u.Email}},
			Subject:      "You have been added to the " + inv.Kind + " " + inv.Title,
			TemplateName: "invitation",
			TemplateData: map[string]interface{}{
				"InviteeName": u.Name,
				"InviterName": inv.Inviter.Name,
				"Role":        inv.Role,
				"Kind":        inv.Kind,
				"Title":       inv.Title,
				"Path":        inv.Path,
			},
		})
	}
	return msgs
}

// Send hands the invitation messages to svc, if any.
func (inv Invitation) Send(svc core.EmailService) {
	if svc == nil {
		return
	}
	if msgs := inv.Messages(); len(msgs) > 0 {
		svc.SendMessages(msgs...)
	}
}
