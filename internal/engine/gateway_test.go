package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/zkspend-gateway/internal/audit"
	"github.com/xela07ax/zkspend-gateway/internal/connectors"
	"github.com/xela07ax/zkspend-gateway/internal/domain"
	"github.com/xela07ax/zkspend-gateway/internal/ens"
	"github.com/xela07ax/zkspend-gateway/internal/infra/auth"
	"github.com/xela07ax/zkspend-gateway/internal/policy"
	"github.com/xela07ax/zkspend-gateway/internal/prover"
)

type fakeResolver struct {
	policies map[string]domain.Policy
	errs     map[string]error
	calls    int
}

func (f *fakeResolver) ResolvePolicy(_ context.Context, name string) (domain.Policy, error) {
	f.calls++
	if err := f.errs[name]; err != nil {
		return domain.Policy{}, err
	}
	p, ok := f.policies[name]
	if !ok {
		return domain.Policy{}, &ens.ResolutionError{Kind: ens.KindNotFound, Name: name}
	}
	return p.Clone(), nil
}

type fakeProver struct {
	calls  []domain.ProofInputs
	err    error
	kind   domain.ProofKind
	reason string
}

func (f *fakeProver) GenerateProof(_ context.Context, req domain.ProofInputs) (*domain.ZKProof, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	kind := f.kind
	if kind == "" {
		kind = domain.ProofKindReal
	}
	return &domain.ZKProof{
		Kind:          kind,
		MockReason:    f.reason,
		ProofData:     []byte{0x01},
		PublicSignals: []string{"777", "1", "100000000", req.Fingerprint},
		Commitment:    "777",
		Verified:      true,
	}, nil
}

type fakeVerifier struct {
	res domain.VerificationResult
	err error
}

func (f *fakeVerifier) Verify(context.Context, *domain.ZKProof) (domain.VerificationResult, error) {
	return f.res, f.err
}

func (f *fakeVerifier) VerifyWithSignals(context.Context, *domain.ZKProof) (domain.VerificationResult, error) {
	res := f.res
	res.Commitment = "777"
	return res, f.err
}

type fakeExecutor struct {
	calls  int
	result domain.PaymentResult
	errs   []error
}

func (f *fakeExecutor) Execute(context.Context, domain.PaymentRequest) (domain.PaymentResult, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return domain.PaymentResult{}, err
		}
	}
	return f.result, nil
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []audit.AuditEvent
}

func (r *recordingAuditor) Log(e audit.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAuditor) last(t *testing.T) audit.AuditEvent {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.events)
	return r.events[len(r.events)-1]
}

const testPolicyName = "agent.zkspend.eth"

func testPolicy() domain.Policy {
	maxSpend := decimal.RequireFromString("100")
	actions := []string{"payment", "swap"}
	return domain.Policy{
		SourceName:     testPolicyName,
		MaxSpend:       maxSpend,
		AllowedActions: actions,
		Version:        "2.0",
		Fingerprint:    policy.Fingerprint(maxSpend, actions, "2.0"),
	}
}

type fixture struct {
	gw       *Gateway
	resolver *fakeResolver
	prover   *fakeProver
	verifier *fakeVerifier
	executor *fakeExecutor
	auditor  *recordingAuditor
	metrics  *Metrics
}

func newFixture() *fixture {
	f := &fixture{
		resolver: &fakeResolver{policies: map[string]domain.Policy{testPolicyName: testPolicy()}, errs: map[string]error{}},
		prover:   &fakeProver{},
		verifier: &fakeVerifier{res: domain.VerificationResult{Valid: true, Kind: domain.ProofKindReal}},
		executor: &fakeExecutor{result: domain.PaymentResult{Success: true, TransactionHash: "0xabc", Status: domain.PaymentConfirmed}},
		auditor:  &recordingAuditor{},
		metrics:  NewMetrics(prometheus.NewRegistry()),
	}
	f.gw = NewGateway(f.resolver, f.prover, f.verifier, f.executor, f.auditor, f.metrics, zap.NewNop())
	return f
}

func requireCompliance(t *testing.T, err error, reason domain.ComplianceReason) {
	t.Helper()
	var cErr *domain.ComplianceError
	require.True(t, errors.As(err, &cErr), "expected ComplianceError, got %v", err)
	assert.Equal(t, reason, cErr.Reason)
}

func TestProve(t *testing.T) {
	f := newFixture()
	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = auth.WithClaims(ctx, &domain.CustomClaims{AgentID: "agent-42"})

	resp, err := f.gw.Prove(ctx, decimal.RequireFromString("50"), testPolicyName)
	require.NoError(t, err)

	p := testPolicy()
	assert.Equal(t, p.Summary(), resp.Policy)
	assert.Equal(t, domain.ProofKindReal, resp.Proof.Kind)

	require.Len(t, f.prover.calls, 1)
	assert.True(t, f.prover.calls[0].Amount.Equal(decimal.RequireFromString("50")))
	assert.True(t, f.prover.calls[0].MaxSpend.Equal(p.MaxSpend))
	assert.Equal(t, p.Fingerprint, f.prover.calls[0].Fingerprint)

	e := f.auditor.last(t)
	assert.Equal(t, audit.OpProve, e.Operation)
	assert.Equal(t, audit.StatusSuccess, e.Status)
	assert.Equal(t, "trace-1", e.TraceID)
	assert.Equal(t, "agent-42", e.AgentID)
	assert.Equal(t, "2.0", e.PolicyVersion)
	assert.Equal(t, "777", e.Commitment)
	assert.Equal(t, "real", e.ProofKind)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ProofsTotal.WithLabelValues("real")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TotalRequests.WithLabelValues("prove", audit.StatusSuccess)))
}

func TestProveAtLimit(t *testing.T) {
	f := newFixture()
	_, err := f.gw.Prove(context.Background(), decimal.RequireFromString("100"), testPolicyName)
	require.NoError(t, err)
}

func TestProveRejectsBeforeProving(t *testing.T) {
	cases := []struct {
		amount string
		reason domain.ComplianceReason
	}{
		{"100.000001", domain.ReasonLimitExceeded},
		{"150", domain.ReasonLimitExceeded},
		{"-1", domain.ReasonNegativeAmount},
	}
	for _, tc := range cases {
		t.Run(tc.amount, func(t *testing.T) {
			f := newFixture()
			_, err := f.gw.Prove(context.Background(), decimal.RequireFromString(tc.amount), testPolicyName)
			requireCompliance(t, err, tc.reason)
			assert.Empty(t, f.prover.calls)

			e := f.auditor.last(t)
			assert.Equal(t, audit.StatusRejected, e.Status)
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestProvePropagatesPolicyErrors(t *testing.T) {
	f := newFixture()
	pErr := &policy.PolicyError{Code: policy.CodeMissingMaxSpend, Name: "broken.eth", Key: "agent.maxSpend"}
	f.resolver.errs["broken.eth"] = pErr

	_, err := f.gw.Prove(context.Background(), decimal.NewFromInt(1), "broken.eth")
	assert.Same(t, pErr, err)
	assert.Equal(t, audit.StatusPolicyError, f.auditor.last(t).Status)

	_, err = f.gw.Prove(context.Background(), decimal.NewFromInt(1), "unknown.eth")
	var rErr *ens.ResolutionError
	require.True(t, errors.As(err, &rErr))
	assert.Equal(t, ens.KindNotFound, rErr.Kind)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ErrorTotal.WithLabelValues("resolution_not_found")))
}

func TestProveGeneratorFailure(t *testing.T) {
	f := newFixture()
	f.prover.err = prover.ErrArtifactsMissing

	_, err := f.gw.Prove(context.Background(), decimal.NewFromInt(1), testPolicyName)
	assert.ErrorIs(t, err, prover.ErrArtifactsMissing)
	assert.Equal(t, audit.StatusFailed, f.auditor.last(t).Status)
}

func TestProcessPayment(t *testing.T) {
	f := newFixture()
	req := domain.PaymentRequest{
		Amount:     decimal.RequireFromString("25.5"),
		Recipient:  "0x000000000000000000000000000000000000dEaD",
		PolicyName: testPolicyName,
	}

	resp, err := f.gw.ProcessPayment(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Payment.Success)
	assert.Equal(t, "0xabc", resp.Payment.TransactionHash)
	assert.Equal(t, testPolicyName, resp.Policy.SourceName)
	require.NotNil(t, resp.Proof)
	assert.Equal(t, 1, f.executor.calls)

	e := f.auditor.last(t)
	assert.Equal(t, audit.OpPayment, e.Operation)
	assert.Equal(t, audit.StatusSuccess, e.Status)
	assert.Equal(t, req.Recipient, e.Recipient)
	assert.Equal(t, "0xabc", e.TxHash)
}

func TestProcessPaymentActionCheck(t *testing.T) {
	f := newFixture()
	req := domain.PaymentRequest{Amount: decimal.NewFromInt(1), Action: "Withdraw", PolicyName: testPolicyName}

	_, err := f.gw.ProcessPayment(context.Background(), req)
	requireCompliance(t, err, domain.ReasonActionNotAllowed)
	assert.Empty(t, f.prover.calls)
	assert.Zero(t, f.executor.calls)

	req.Action = "SWAP"
	_, err = f.gw.ProcessPayment(context.Background(), req)
	require.NoError(t, err)
}

func TestProcessPaymentOverLimit(t *testing.T) {
	f := newFixture()
	_, err := f.gw.ProcessPayment(context.Background(), domain.PaymentRequest{
		Amount:     decimal.NewFromInt(101),
		PolicyName: testPolicyName,
	})
	requireCompliance(t, err, domain.ReasonLimitExceeded)
	assert.Zero(t, f.executor.calls)
}

func TestProcessPaymentExecutorOutcomes(t *testing.T) {
	req := domain.PaymentRequest{Amount: decimal.NewFromInt(1), Recipient: "nope", PolicyName: testPolicyName}

	t.Run("provider declined", func(t *testing.T) {
		f := newFixture()
		f.executor.result = domain.PaymentResult{Success: false, Status: domain.PaymentFailed}

		resp, err := f.gw.ProcessPayment(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, resp.Payment.Success)
		assert.Equal(t, audit.StatusFailed, f.auditor.last(t).Status)
	})

	t.Run("executor error", func(t *testing.T) {
		f := newFixture()
		boom := errors.New("provider down")
		f.executor.errs = []error{boom}

		_, err := f.gw.ProcessPayment(context.Background(), req)
		assert.ErrorIs(t, err, boom)
		e := f.auditor.last(t)
		assert.Equal(t, audit.StatusFailed, e.Status)
		assert.Equal(t, "777", e.Commitment)
	})
}

func TestVerify(t *testing.T) {
	f := newFixture()
	proof := &domain.ZKProof{Kind: domain.ProofKindReal, Commitment: "777"}

	res, err := f.gw.Verify(context.Background(), proof, false)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Commitment)

	res, err = f.gw.Verify(context.Background(), proof, true)
	require.NoError(t, err)
	assert.Equal(t, "777", res.Commitment)

	f.verifier.res = domain.VerificationResult{Valid: false, Error: "pairing check failed"}
	res, err = f.gw.Verify(context.Background(), proof, false)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	e := f.auditor.last(t)
	assert.Equal(t, audit.StatusRejected, e.Status)
	assert.Equal(t, "pairing check failed", e.Error)

	_, err = f.gw.Verify(context.Background(), nil, false)
	assert.Error(t, err)
}

// Без артефактов схемы пайплайн работает на mock-доказательствах,
// а верификатор в нестрогом режиме их принимает.
func TestGatewayWithMockProver(t *testing.T) {
	dir := t.TempDir()
	artifacts := prover.NewArtifacts(prover.ArtifactPaths{
		Circuit:      filepath.Join(dir, "circuit.r1cs"),
		ProvingKey:   filepath.Join(dir, "proving.key"),
		VerifyingKey: filepath.Join(dir, "verification.key"),
	}, zap.NewNop())

	f := newFixture()
	gen := prover.NewGenerator(artifacts, prover.Options{}, zap.NewNop())
	ver := prover.NewVerifier(artifacts, prover.Options{}, zap.NewNop())
	gw := NewGateway(f.resolver, gen, ver, f.executor, f.auditor, f.metrics, zap.NewNop())

	resp, err := gw.Prove(context.Background(), decimal.RequireFromString("99.99"), testPolicyName)
	require.NoError(t, err)
	assert.True(t, resp.Proof.IsMock())
	assert.NotEmpty(t, resp.Proof.MockReason)
	assert.Equal(t, "1", resp.Proof.PublicSignals[domain.SignalIsValid])
	assert.Equal(t, "100000000", resp.Proof.PublicSignals[domain.SignalMaxSpend])
	assert.Equal(t, resp.Policy.Fingerprint, resp.Proof.PublicSignals[domain.SignalFingerprint])

	res, err := gw.Verify(context.Background(), resp.Proof, true)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, resp.Proof.Commitment, res.Commitment)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ProofsTotal.WithLabelValues("mock")))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err     error
		status  string
		errType string
	}{
		{&domain.ComplianceError{Reason: domain.ReasonLimitExceeded}, audit.StatusRejected, "compliance_policy_limit_exceeded"},
		{&policy.PolicyError{Code: policy.CodeInvalidMaxSpend}, audit.StatusPolicyError, "policy"},
		{&ens.ResolutionError{Kind: ens.KindTimeout}, audit.StatusPolicyError, "resolution_timeout"},
		{context.DeadlineExceeded, audit.StatusFailed, "canceled"},
		{errors.New("x"), audit.StatusFailed, "internal"},
	}
	for _, tc := range cases {
		status, errType := classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.errType, errType, tc.err.Error())
	}
}

func TestReliableExecutor(t *testing.T) {
	throttle := &connectors.ThrottleError{RetryAfter: time.Millisecond, Cause: connectors.ErrProviderBusy}
	opts := ExecutorOptions{Attempts: 3, CallTimeout: time.Second}

	t.Run("retries throttles", func(t *testing.T) {
		next := &fakeExecutor{
			result: domain.PaymentResult{Success: true, Status: domain.PaymentConfirmed},
			errs:   []error{throttle, throttle},
		}
		res, err := NewReliableExecutor(next, opts, zap.NewNop()).Execute(context.Background(), domain.PaymentRequest{})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, 3, next.calls)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		next := &fakeExecutor{errs: []error{throttle, throttle, throttle, throttle}}
		_, err := NewReliableExecutor(next, opts, zap.NewNop()).Execute(context.Background(), domain.PaymentRequest{})
		var tErr *connectors.ThrottleError
		assert.True(t, errors.As(err, &tErr))
		assert.Equal(t, 3, next.calls)
	})

	t.Run("does not retry other failures", func(t *testing.T) {
		boom := errors.New("connection reset")
		next := &fakeExecutor{errs: []error{boom}}
		_, err := NewReliableExecutor(next, opts, zap.NewNop()).Execute(context.Background(), domain.PaymentRequest{})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, next.calls)
	})
}

func TestWarmupPolicies(t *testing.T) {
	resolver := &fakeResolver{
		policies: map[string]domain.Policy{testPolicyName: testPolicy()},
		errs:     map[string]error{"broken.eth": &policy.PolicyError{Code: policy.CodeMissingMaxSpend}},
	}

	n := WarmupPolicies(context.Background(), nil, resolver, []string{testPolicyName, "broken.eth", "unknown.eth"}, zap.NewNop())
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, resolver.calls)

	assert.Zero(t, WarmupPolicies(context.Background(), nil, resolver, nil, zap.NewNop()))
}
