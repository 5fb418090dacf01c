package services

import (
	"fmt"

	"github.com/Dosada05/esports-booking/models"
)

// BookingEvent - действие игрока или админа над заявкой.
type BookingEvent string

const (
	EventSubmit           BookingEvent = "submit"
	EventApprove          BookingEvent = "approve"
	EventReject           BookingEvent = "reject"
	EventMessage          BookingEvent = "message"
	EventComplete         BookingEvent = "complete"
	EventCancel           BookingEvent = "cancel"
	EventDeclareWinner    BookingEvent = "declare_winner"
	EventUploadQR         BookingEvent = "upload_qr"
	EventMarkPaid         BookingEvent = "mark_paid"
	EventCancelTournament BookingEvent = "cancel_tournament"
)

type bookingTransition struct {
	From  models.BookingStatus
	Event BookingEvent
	To    models.BookingStatus
}

// bookingTransitions - полная таблица жизненного цикла. Все, чего здесь нет, запрещено.
// Пустой From - создание заявки.
var bookingTransitions = []bookingTransition{
	{From: "", Event: EventSubmit, To: models.BookingPending},
	{From: models.BookingPending, Event: EventApprove, To: models.BookingApproved},
	{From: models.BookingPending, Event: EventReject, To: models.BookingRejected},
	{From: models.BookingApproved, Event: EventMessage, To: models.BookingApproved},
	{From: models.BookingApproved, Event: EventComplete, To: models.BookingCompleted},
	{From: models.BookingApproved, Event: EventCancel, To: models.BookingCancelled},
	{From: models.BookingApproved, Event: EventDeclareWinner, To: models.BookingWon},
	{From: models.BookingWon, Event: EventUploadQR, To: models.BookingProcessing},
	{From: models.BookingProcessing, Event: EventMarkPaid, To: models.BookingPaid},
	{From: models.BookingApproved, Event: EventCancelTournament, To: models.BookingRefundPending},
	{From: models.BookingRefundPending, Event: EventUploadQR, To: models.BookingRefundProcessing},
	{From: models.BookingRefundProcessing, Event: EventMarkPaid, To: models.BookingRefundPaid},
}

type transitionKey struct {
	from  models.BookingStatus
	event BookingEvent
}

var bookingTransitionIndex = func() map[transitionKey]models.BookingStatus {
	index := make(map[transitionKey]models.BookingStatus, len(bookingTransitions))
	for _, t := range bookingTransitions {
		index[transitionKey{from: t.From, event: t.Event}] = t.To
	}
	return index
}()

// NextBookingStatus возвращает состояние после события или ErrInvalidBookingTransition.
func NextBookingStatus(from models.BookingStatus, event BookingEvent) (models.BookingStatus, error) {
	to, ok := bookingTransitionIndex[transitionKey{from: from, event: event}]
	if !ok {
		return "", fmt.Errorf("%w: %s from %q", ErrInvalidBookingTransition, event, from)
	}
	return to, nil
}

// AllowedBookingEvents - события, допустимые из состояния (для UI и ответов об ошибках).
func AllowedBookingEvents(from models.BookingStatus) []BookingEvent {
	events := make([]BookingEvent, 0, 2)
	for _, t := range bookingTransitions {
		if t.From == from {
			events = append(events, t.Event)
		}
	}
	return events
}
