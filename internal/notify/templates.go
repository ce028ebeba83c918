// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package notify

import (
	"context"
	"fmt"

	"github.com/olegiv/eventboard/internal/model"
)

// Notification kinds.
const (
	KindInfo    = model.NotificationInfo
	KindSuccess = model.NotificationSuccess
	KindWarning = model.NotificationWarning
	KindError   = model.NotificationError
)

var statusTitles = map[model.EventStatus]string{
	model.EventApproved: "✅ Your event has been approved!",
	model.EventRejected: "❌ Your event has been rejected.",
	model.EventPending:  "⏳ Your event is pending review.",
}

// StatusChangeMessage builds the creator notification for a status change.
func StatusChangeMessage(ev model.Event, from, to model.EventStatus) Message {
	title, ok := statusTitles[to]
	if !ok {
		title = "Event Status Updated"
	}
	kind := KindInfo
	switch to {
	case model.EventApproved:
		kind = KindSuccess
	case model.EventRejected:
		kind = KindError
	}
	return Message{
		UserID:      ev.CreatedBy,
		Title:       title,
		Body:        fmt.Sprintf("Your event '%s' status has changed from %s to %s.", ev.Title, from, to),
		Kind:        kind,
		RelatedType: model.RelatedEvent,
		RelatedID:   ev.ID,
		SendEmail:   true,
	}
}

// NotifyEventStatusChange tells the event's creator about a status change.
func NotifyEventStatusChange(ctx context.Context, d Dispatcher, ev model.Event, from, to model.EventStatus) bool {
	return d.Create(ctx, StatusChangeMessage(ev, from, to))
}

// NotifyNewEvent announces a newly approved event to every student.
func NotifyNewEvent(ctx context.Context, d Dispatcher, studentIDs []int64, ev model.Event) int {
	if len(studentIDs) == 0 {
		return 0
	}
	return d.CreateForUsers(ctx, studentIDs, Message{
		Title:       "🎉 New Event Available!",
		Body:        fmt.Sprintf("A new event '%s' has been posted. Check it out!", ev.Title),
		Kind:        KindInfo,
		RelatedType: model.RelatedEvent,
		RelatedID:   ev.ID,
	})
}

// EventSubmittedMessage is sent to admins when an event awaits moderation.
func EventSubmittedMessage(ev model.Event) Message {
	return Message{
		Title:       "New Event Pending Approval",
		Body:        fmt.Sprintf("A new event \"%s\" requires your approval.", ev.Title),
		Kind:        KindInfo,
		RelatedType: model.RelatedEvent,
		RelatedID:   ev.ID,
	}
}

// TeacherRegisteredMessage is sent to admins when a teacher signs up.
func TeacherRegisteredMessage(u model.User) Message {
	return Message{
		Title: "New Teacher Registration",
		Body:  fmt.Sprintf("A new teacher '%s' (%s) has registered and is pending approval.", u.Name, u.Email),
		Kind:  KindInfo,
	}
}

// AccountApprovedMessage is sent to a teacher once approved.
func AccountApprovedMessage(userID int64) Message {
	return Message{
		UserID: userID,
		Title:  "Account Approved!",
		Body:   "Your teacher account has been approved by the administrator. You can now login and start creating events.",
		Kind:   KindSuccess,
	}
}

// WelcomeMail greets a newly active account.
func WelcomeMail(u model.User) Mail {
	body := fmt.Sprintf("Hello %s,\n\nWelcome to Event Management System! Your %s account is ready.", u.Name, u.Role)
	if u.Role == model.RoleTeacher {
		body += " You can now create events and submit them for approval."
	} else {
		body += " You can now browse and follow approved events."
	}
	return Mail{To: u.Email, Subject: "Welcome to Event Management System", Body: body}
}

// PasswordResetMail carries the reset link.
func PasswordResetMail(u model.User, resetURL string) Mail {
	return Mail{
		To:      u.Email,
		Subject: "Password Reset Request",
		Body: fmt.Sprintf("Hello %s,\n\nWe received a request to reset your password. "+
			"Open the link below within one hour to choose a new one:\n\n%s\n\n"+
			"If you did not ask for this, you can ignore this email.", u.Name, resetURL),
	}
}

// RegistrationDeclinedMail tells a teacher their pending account was removed.
func RegistrationDeclinedMail(u model.User) Mail {
	return Mail{
		To:      u.Email,
		Subject: "Registration Declined",
		Body: fmt.Sprintf("Hello %s,\n\nYour teacher registration for Event Management System was not approved "+
			"and the account has been removed. Contact the administrator if you think this is a mistake.", u.Name),
	}
}
