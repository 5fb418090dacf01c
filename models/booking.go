package models

import "time"

// BookingStatus - состояние заявки игрока в жизненном цикле брони.
type BookingStatus string

const (
	BookingPending          BookingStatus = "pending"
	BookingApproved         BookingStatus = "approved"
	BookingRejected         BookingStatus = "rejected"
	BookingCompleted        BookingStatus = "completed"
	BookingCancelled        BookingStatus = "cancelled"
	BookingWon              BookingStatus = "won"
	BookingProcessing       BookingStatus = "processing"
	BookingPaid             BookingStatus = "paid"
	BookingRefundPending    BookingStatus = "refund_pending"
	BookingRefundProcessing BookingStatus = "refund_processing"
	BookingRefundPaid       BookingStatus = "refund_paid"
)

// Booking - заявка одного игрока/команды на один слот турнира.
type Booking struct {
	ID            int           `json:"id"`
	TournamentID  int           `json:"tournament_id"`
	UserID        int           `json:"user_id"`
	PlayerName    string        `json:"player_name"`
	GameUID       string        `json:"game_uid,omitempty"`
	Whatsapp      string        `json:"whatsapp"`
	ScreenshotURL string        `json:"screenshot_url,omitempty"`
	Status        BookingStatus `json:"status"`
	SlotLabel     string        `json:"slot_label,omitempty"`
	AdminMessage  string        `json:"admin_message,omitempty"`
	MessageTime   *time.Time    `json:"message_time,omitempty"`
	PrizeAmount   int           `json:"prize_amount"`
	PrizeRank     *int          `json:"prize_rank,omitempty"`
	UserQR        string        `json:"user_qr,omitempty"`
	PaymentProof  string        `json:"payment_proof,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`

	Tournament *Tournament `json:"tournament,omitempty"`
}

// OccupiesSlot - заявка, которая занимает слот в турнире.
func (s BookingStatus) OccupiesSlot() bool {
	switch s {
	case BookingApproved, BookingCompleted, BookingWon, BookingProcessing, BookingPaid:
		return true
	}
	return false
}

// AwaitingPayout - заявка ждет QR или выплаты.
func (s BookingStatus) AwaitingPayout() bool {
	switch s {
	case BookingWon, BookingProcessing, BookingRefundPending, BookingRefundProcessing:
		return true
	}
	return false
}

func (s BookingStatus) IsRefund() bool {
	return s == BookingRefundPending || s == BookingRefundProcessing || s == BookingRefundPaid
}
