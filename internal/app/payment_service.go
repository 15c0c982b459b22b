package app

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"gym_reminder_service/internal/domain/membership"
	"gym_reminder_service/internal/domain/payment"
	idb "gym_reminder_service/internal/infra/database"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrInvalidSignature = fmt.Errorf("payment signature verification failed")
var ErrInvalidPaymentRequest = fmt.Errorf("invalid payment verification request")

// VerifyRequest carries the fields the checkout returns after payment.
type VerifyRequest struct {
	OrderID     string `json:"razorpay_order_id"`
	PaymentID   string `json:"razorpay_payment_id"`
	Signature   string `json:"razorpay_signature"`
	MemberID    int64  `json:"member_id"`
	AmountPaise int64  `json:"amount_paise"`
	PlanDays    int    `json:"plan_days"`
}

type VerifyResult struct {
	PaymentID       int64  `json:"paymentId"`
	SubscriptionID  int64  `json:"subscriptionId"`
	StartDate       string `json:"startDate,omitempty"`
	EndDate         string `json:"endDate,omitempty"`
	AlreadyRecorded bool   `json:"alreadyRecorded"`
}

// PaymentService verifies gateway callbacks and activates the paid subscription.
type PaymentService struct {
	paymentRepo payment.Repository
	memberRepo  membership.Repository
	keySecret   string
	location    *time.Location
	logger      *logrus.Entry
	tracer      trace.Tracer
	now         func() time.Time
}

func NewPaymentService(pr payment.Repository, mr membership.Repository, keySecret string, loc *time.Location, logger *logrus.Entry) *PaymentService {
	if loc == nil {
		loc = time.Local
	}
	return &PaymentService{
		paymentRepo: pr,
		memberRepo:  mr,
		keySecret:   keySecret,
		location:    loc,
		logger:      logger,
		tracer:      otel.Tracer("payment-service"),
		now:         time.Now,
	}
}

// SignPayment computes the hex HMAC-SHA256 of "order_id|payment_id".
func SignPayment(keySecret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *PaymentService) validSignature(orderID, paymentID, signature string) bool {
	expected := SignPayment(s.keySecret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// Verify checks the signature and, if valid, records the payment and its subscription.
// Nothing is written when verification fails. Replays return AlreadyRecorded.
func (s *PaymentService) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" || req.MemberID <= 0 || req.PlanDays <= 0 {
		return nil, ErrInvalidPaymentRequest
	}
	ctx, span := s.tracer.Start(ctx, "VerifyPayment")
	defer span.End()
	span.SetAttributes(attribute.String("payment.id", req.PaymentID), attribute.Int64("member.id", req.MemberID))

	log := s.logger.WithFields(logrus.Fields{
		"order_id":   req.OrderID,
		"payment_id": req.PaymentID,
		"member_id":  req.MemberID,
	})

	if !s.validSignature(req.OrderID, req.PaymentID, req.Signature) {
		log.Warn("Payment signature mismatch")
		return nil, ErrInvalidSignature
	}

	existing, err := s.paymentRepo.GetByGatewayPaymentID(ctx, req.PaymentID)
	if err == nil {
		log.Info("Payment already recorded")
		return alreadyRecorded(existing), nil
	}
	if !errors.Is(err, idb.ErrPaymentNotFound) {
		return nil, fmt.Errorf("failed to look up payment: %w", err)
	}

	member, err := s.memberRepo.GetMemberByID(ctx, req.MemberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load member %d: %w", req.MemberID, err)
	}

	start := startOfDay(s.now().In(s.location))
	sub := &membership.Subscription{
		MemberID:  member.ID,
		BranchID:  member.BranchID,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, req.PlanDays),
		Status:    membership.StatusActive,
	}
	p := &payment.Payment{
		GatewayOrderID:   req.OrderID,
		GatewayPaymentID: req.PaymentID,
		MemberID:         member.ID,
		BranchID:         member.BranchID,
		AmountPaise:      req.AmountPaise,
	}

	if err := s.paymentRepo.RecordWithSubscription(ctx, p, sub); err != nil {
		if errors.Is(err, idb.ErrDuplicatePayment) {
			existing, getErr := s.paymentRepo.GetByGatewayPaymentID(ctx, req.PaymentID)
			if getErr != nil {
				return nil, fmt.Errorf("failed to load concurrently recorded payment: %w", getErr)
			}
			return alreadyRecorded(existing), nil
		}
		log.WithError(err).Error("Failed to record payment")
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	log.WithField("subscription_id", sub.ID).Info("Payment verified and subscription activated")
	return &VerifyResult{
		PaymentID:      p.ID,
		SubscriptionID: sub.ID,
		StartDate:      sub.StartDate.Format(dateLayout),
		EndDate:        sub.EndDate.Format(dateLayout),
	}, nil
}

func alreadyRecorded(p *payment.Payment) *VerifyResult {
	return &VerifyResult{
		PaymentID:       p.ID,
		SubscriptionID:  p.SubscriptionID.Int64,
		AlreadyRecorded: true,
	}
}
