package credentials

import (
	"fmt"
	"time"

	"github.com/nikogura/resumelm/pkg/apierr"
)

// Plans and statuses as stored by billing.
const (
	PlanPro        = "pro"
	PlanFree       = "free"
	StatusActive   = "active"
	StatusCanceled = "canceled"
)

// Subscription is the billing state used to decide entitlement.
type Subscription struct {
	Plan                 string     `json:"subscription_plan" yaml:"plan"`
	Status               string     `json:"subscription_status" yaml:"status"`
	StripeSubscriptionID string     `json:"stripe_subscription_id,omitempty" yaml:"stripe_subscription_id,omitempty"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty" yaml:"current_period_end,omitempty"`
	TrialEnd             *time.Time `json:"trial_end,omitempty" yaml:"trial_end,omitempty"`
}

// HasProAccess reports whether server default keys may be used on the user's behalf.
func (s Subscription) HasProAccess(now time.Time) (ok bool) {
	isTrialing := s.TrialEnd != nil && s.TrialEnd.After(now)
	withinWindow := s.CurrentPeriodEnd != nil && s.CurrentPeriodEnd.After(now)

	manual := s.Plan == PlanPro && s.Status == StatusActive
	stripeTimeboxed := s.StripeSubscriptionID != "" && withinWindow
	canceling := s.Plan == PlanPro && s.Status == StatusCanceled && withinWindow

	ok = manual || stripeTimeboxed || canceling || isTrialing
	return ok
}

// EffectivePlan is "pro" with access, "free" otherwise.
func (s Subscription) EffectivePlan(now time.Time) (plan string) {
	plan = PlanFree
	if s.HasProAccess(now) {
		plan = PlanPro
	}
	return plan
}

// Entitlement decides whether server-held keys may be applied.
type Entitlement interface {
	AllowsServerKeys() bool
}

// StaticEntitlement evaluates a fixed subscription against the wall clock.
type StaticEntitlement struct {
	Subscription Subscription
	Now          func() time.Time
}

// AllowsServerKeys implements Entitlement.
func (e StaticEntitlement) AllowsServerKeys() (ok bool) {
	now := time.Now()
	if e.Now != nil {
		now = e.Now()
	}
	ok = e.Subscription.HasProAccess(now)
	return ok
}

// SelectKey picks the key for a resolved call: the user's own key first, then a server
// default when entitlement allows it. Ollama needs none.
func SelectKey(res Resolution, serverKeys map[Provider]string, ent Entitlement) (key string, err error) {
	if !res.Provider.RequiresKey() {
		return key, err
	}

	var ok bool
	key, ok = res.KeyFor(res.Provider)
	if ok {
		return key, err
	}

	if ent != nil && ent.AllowsServerKeys() {
		key = serverKeys[res.Provider]
		if key != "" {
			return key, err
		}
	}

	err = apierr.MissingCredential(fmt.Sprintf("add your %s API key in settings or upgrade to the Pro plan", res.Provider))
	return key, err
}
