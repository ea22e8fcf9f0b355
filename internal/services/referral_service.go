package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"image/png"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
)

const codeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// ReferralService is the referral registry: it maps referral codes to
// owning account ids. Mappings are written once, at account creation, and
// never updated or deleted.
type ReferralService struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewReferralService(db *sql.DB, log *logrus.Logger) *ReferralService {
	return &ReferralService{
		db:  db,
		log: log,
	}
}

// NormalizeCode folds a raw user-supplied code to its canonical form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Resolve maps a referral code to the owning account id. Pure read.
func (s *ReferralService) Resolve(ctx context.Context, code string) (string, error) {
	code = NormalizeCode(code)
	if code == "" {
		return "", fmt.Errorf("empty referral code: %w", ErrNotFound)
	}

	var accountID string
	err := s.db.QueryRowContext(ctx,
		`SELECT account_id FROM referral_codes WHERE code = $1`, code).Scan(&accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("referral code %s: %w", code, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("resolve referral code: %w", err)
	}
	return accountID, nil
}

// Register records code -> accountID. A code maps to exactly one owner;
// the second writer observes ErrAlreadyExists and must retry with a fresh
// code rather than overwrite.
func (s *ReferralService) Register(ctx context.Context, code, accountID string) error {
	code = NormalizeCode(code)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO referral_codes (code, account_id) VALUES ($1, $2)`, code, accountID)
	if isUniqueViolation(err) {
		return fmt.Errorf("referral code %s: %w", code, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("register referral code: %w", err)
	}
	return nil
}

// GenerateReferralCode derives a code from the current time plus a random
// tail, rendered base 36 and upper-cased. Collisions are treated as
// negligible, but the creation path still retries on ErrAlreadyExists.
func GenerateReferralCode() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	tail := make([]byte, 5)
	_, _ = rand.Read(tail)
	for i, b := range tail {
		tail[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return strings.ToUpper(ts + string(tail))
}

// ShareQR renders the referral code as a PNG for the share screen.
func (s *ReferralService) ShareQR(code string) ([]byte, error) {
	qr, err := qrcode.New(NormalizeCode(code), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode referral qr: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
