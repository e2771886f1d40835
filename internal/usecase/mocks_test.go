package usecase

import (
	"context"
	"time"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
	"github.com/khushwant-singh1/bundle-market/internal/core/port"
	"github.com/khushwant-singh1/bundle-market/internal/repository"
)

// Hand-rolled repository mocks shared by the usecase tests.

type userRepoMock struct {
	byEmail        map[string]domain.User
	byID           map[string]domain.User
	createErr      error
	created        []domain.User
	lastLoginCalls int
}

func (m *userRepoMock) Create(_ context.Context, user domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.byEmail[user.Email]; exists {
		return repository.ErrDuplicate
	}
	if m.byEmail == nil {
		m.byEmail = make(map[string]domain.User)
	}
	if m.byID == nil {
		m.byID = make(map[string]domain.User)
	}
	m.byEmail[user.Email] = user
	m.byID[user.ID] = user
	m.created = append(m.created, user)
	return nil
}

func (m *userRepoMock) GetByID(_ context.Context, id string) (*domain.User, error) {
	if user, ok := m.byID[id]; ok {
		return &user, nil
	}
	return nil, repository.ErrNotFound
}

func (m *userRepoMock) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if user, ok := m.byEmail[email]; ok {
		return &user, nil
	}
	return nil, repository.ErrNotFound
}

func (m *userRepoMock) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	m.lastLoginCalls++
	if user, ok := m.byID[id]; ok {
		user.LastLoginAt = &at
		m.byID[id] = user
		m.byEmail[user.Email] = user
		return nil
	}
	return repository.ErrNotFound
}

func (m *userRepoMock) SetActive(_ context.Context, id string, active bool) error {
	user, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.IsActive = active
	m.byID[id] = user
	m.byEmail[user.Email] = user
	return nil
}

type otpRepoMock struct {
	rows          map[string]domain.OTPVerification
	latest        map[string]string
	markUsedCalls []struct {
		ID   string
		Used bool
	}
	deleteCalls  []string
	incrementErr error
	markUsedErr  error
}

func otpKey(email string, typ domain.OTPType) string {
	return email + "|" + string(typ)
}

func (m *otpRepoMock) CreateReplacing(_ context.Context, otp domain.OTPVerification) error {
	if m.rows == nil {
		m.rows = make(map[string]domain.OTPVerification)
	}
	if m.latest == nil {
		m.latest = make(map[string]string)
	}
	key := otpKey(otp.Email, otp.Type)
	if prior, ok := m.latest[key]; ok {
		delete(m.rows, prior)
	}
	m.rows[otp.ID] = otp
	m.latest[key] = otp.ID
	return nil
}

func (m *otpRepoMock) GetLatest(_ context.Context, email string, typ domain.OTPType) (*domain.OTPVerification, error) {
	id, ok := m.latest[otpKey(email, typ)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	row, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := row
	return &copy, nil
}

func (m *otpRepoMock) MarkUsed(_ context.Context, id string, used bool) error {
	m.markUsedCalls = append(m.markUsedCalls, struct {
		ID   string
		Used bool
	}{id, used})
	if m.markUsedErr != nil {
		return m.markUsedErr
	}
	row, ok := m.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	row.IsUsed = used
	m.rows[id] = row
	return nil
}

func (m *otpRepoMock) IncrementAttempts(_ context.Context, id string) (int, error) {
	if m.incrementErr != nil {
		return 0, m.incrementErr
	}
	row, ok := m.rows[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	row.Attempts++
	m.rows[id] = row
	return row.Attempts, nil
}

func (m *otpRepoMock) Delete(_ context.Context, id string) error {
	m.deleteCalls = append(m.deleteCalls, id)
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type orderRepoMock struct {
	orders       map[string]domain.Order
	createErr    error
	approveErr   error
	updateIfErr  error
	attachCalls  []string
	approveCalls int
}

func (m *orderRepoMock) put(order domain.Order) {
	if m.orders == nil {
		m.orders = make(map[string]domain.Order)
	}
	m.orders[order.ID] = order
}

func (m *orderRepoMock) Create(_ context.Context, order domain.Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.put(order)
	return nil
}

func (m *orderRepoMock) GetByID(_ context.Context, id string) (*domain.Order, error) {
	if order, ok := m.orders[id]; ok {
		copy := order
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (m *orderRepoMock) GetByIDAndEmail(_ context.Context, id, email string) (*domain.Order, error) {
	order, ok := m.orders[id]
	if !ok || order.Email != email {
		return nil, repository.ErrNotFound
	}
	copy := order
	return &copy, nil
}

func (m *orderRepoMock) UpdateStatusIf(_ context.Context, id string, expected, next domain.OrderStatus) error {
	if m.updateIfErr != nil {
		return m.updateIfErr
	}
	order, ok := m.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	if order.Status != expected {
		return repository.ErrStale
	}
	order.Status = next
	m.orders[id] = order
	return nil
}

func (m *orderRepoMock) Approve(_ context.Context, id string, approval port.OrderApproval) error {
	m.approveCalls++
	if m.approveErr != nil {
		return m.approveErr
	}
	order, ok := m.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	if order.Status != domain.OrderStatusPaymentUploaded {
		return repository.ErrStale
	}
	order.Status = domain.OrderStatusApproved
	order.ApprovedBy = &approval.AdminID
	order.ApprovedAt = &approval.ApprovedAt
	order.AdminNotes = approval.Notes
	m.orders[id] = order
	return nil
}

func (m *orderRepoMock) Reject(_ context.Context, id string, adminID, reason string, at time.Time) error {
	order, ok := m.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	if order.Status != domain.OrderStatusPaymentUploaded {
		return repository.ErrStale
	}
	order.Status = domain.OrderStatusRejected
	order.AdminNotes = &reason
	m.orders[id] = order
	return nil
}

func (m *orderRepoMock) AttachPaymentScreenshot(_ context.Context, id, screenshotKey string) error {
	m.attachCalls = append(m.attachCalls, screenshotKey)
	order, ok := m.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	order.PaymentScreenshot = &screenshotKey
	m.orders[id] = order
	return nil
}

type bundleRepoMock struct {
	bundles        map[string]domain.Bundle
	incrementCalls []string
}

func (m *bundleRepoMock) GetByID(_ context.Context, id string) (*domain.Bundle, error) {
	if bundle, ok := m.bundles[id]; ok {
		copy := bundle
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (m *bundleRepoMock) GetBySlug(_ context.Context, slug string) (*domain.Bundle, error) {
	for _, bundle := range m.bundles {
		if bundle.Slug == slug {
			copy := bundle
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *bundleRepoMock) IncrementDownloadCount(_ context.Context, id string) error {
	m.incrementCalls = append(m.incrementCalls, id)
	return nil
}

type downloadRepoMock struct {
	rows []domain.Download
}

func (m *downloadRepoMock) Create(_ context.Context, download domain.Download) error {
	m.rows = append(m.rows, download)
	return nil
}

func (m *downloadRepoMock) CountForOrder(_ context.Context, orderID string) (int, error) {
	count := 0
	for _, row := range m.rows {
		if row.OrderID == orderID {
			count++
		}
	}
	return count, nil
}

type tokenRepoMock struct {
	byToken       map[string]domain.DownloadToken
	createErr     error
	markUsedCalls []string
	releaseCalls  []string
	sweepCalls    int
	// claimRacer, when set, runs before the guarded update to model a
	// concurrent redemption winning the claim first.
	claimRacer func()
}

func (m *tokenRepoMock) put(token domain.DownloadToken) {
	if m.byToken == nil {
		m.byToken = make(map[string]domain.DownloadToken)
	}
	m.byToken[token.Token] = token
}

func (m *tokenRepoMock) Create(_ context.Context, token domain.DownloadToken) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.put(token)
	return nil
}

func (m *tokenRepoMock) GetByToken(_ context.Context, token string) (*domain.DownloadToken, error) {
	if row, ok := m.byToken[token]; ok {
		copy := row
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (m *tokenRepoMock) GetActive(_ context.Context, userID, bundleID string, now time.Time) (*domain.DownloadToken, error) {
	for _, row := range m.byToken {
		if row.UserID == userID && row.BundleID == bundleID && row.Valid(now) {
			copy := row
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *tokenRepoMock) MarkUsed(_ context.Context, id string, at time.Time) error {
	m.markUsedCalls = append(m.markUsedCalls, id)
	if m.claimRacer != nil {
		m.claimRacer()
		m.claimRacer = nil
	}
	for key, row := range m.byToken {
		if row.ID == id {
			if row.IsUsed {
				return repository.ErrStale
			}
			row.IsUsed = true
			row.UsedAt = &at
			m.byToken[key] = row
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *tokenRepoMock) Release(_ context.Context, id string) error {
	m.releaseCalls = append(m.releaseCalls, id)
	for key, row := range m.byToken {
		if row.ID == id {
			row.IsUsed = false
			row.UsedAt = nil
			m.byToken[key] = row
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *tokenRepoMock) DeleteExpired(_ context.Context, userID, bundleID string, now time.Time) error {
	m.sweepCalls++
	for key, row := range m.byToken {
		if row.UserID == userID && row.BundleID == bundleID && now.After(row.ExpiresAt) {
			delete(m.byToken, key)
		}
	}
	return nil
}

type mailerMock struct {
	sent    []port.Mail
	sendErr error
}

func (m *mailerMock) Send(_ context.Context, mail port.Mail) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, mail)
	return nil
}

type publisherMock struct {
	approved     []domain.OrderApprovedEvent
	rejected     []domain.OrderRejectedEvent
	completed    []domain.OrderCompletedEvent
	approvedErr  error
	rejectedErr  error
	completedErr error
}

func (m *publisherMock) PublishOrderApproved(_ context.Context, event domain.OrderApprovedEvent) error {
	if m.approvedErr != nil {
		return m.approvedErr
	}
	m.approved = append(m.approved, event)
	return nil
}

func (m *publisherMock) PublishOrderRejected(_ context.Context, event domain.OrderRejectedEvent) error {
	if m.rejectedErr != nil {
		return m.rejectedErr
	}
	m.rejected = append(m.rejected, event)
	return nil
}

func (m *publisherMock) PublishOrderCompleted(_ context.Context, event domain.OrderCompletedEvent) error {
	if m.completedErr != nil {
		return m.completedErr
	}
	m.completed = append(m.completed, event)
	return nil
}

type blobStoreMock struct {
	puts       map[string][]byte
	putErr     error
	presignErr error
}

func (m *blobStoreMock) PresignGet(_ context.Context, objectKey string, ttl time.Duration) (string, error) {
	if m.presignErr != nil {
		return "", m.presignErr
	}
	return "https://blobs.test/" + objectKey + "?signed=1", nil
}

func (m *blobStoreMock) Put(_ context.Context, objectKey string, data []byte) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	if m.puts == nil {
		m.puts = make(map[string][]byte)
	}
	m.puts[objectKey] = data
	return objectKey, nil
}

type rateLimitStoreMock struct {
	attempts  map[string][]time.Time
	recordErr error
	countErr  error
	trimErr   error
}

func (m *rateLimitStoreMock) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	if m.attempts == nil {
		m.attempts = make(map[string][]time.Time)
	}
	m.attempts[identifier] = append(m.attempts[identifier], at)
	return nil
}

func (m *rateLimitStoreMock) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	count := 0
	cutoff := reference.Add(-window)
	for _, at := range m.attempts[identifier] {
		if at.After(cutoff) {
			count++
		}
	}
	return count, nil
}

func (m *rateLimitStoreMock) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	if m.trimErr != nil {
		return m.trimErr
	}
	cutoff := reference.Add(-window)
	kept := m.attempts[identifier][:0]
	for _, at := range m.attempts[identifier] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if m.attempts != nil {
		m.attempts[identifier] = kept
	}
	return nil
}

func (m *rateLimitStoreMock) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	cutoff := reference.Add(-window)
	var oldest time.Time
	found := false
	for _, at := range m.attempts[identifier] {
		if at.After(cutoff) && (!found || at.Before(oldest)) {
			oldest = at
			found = true
		}
	}
	return oldest, found, nil
}
