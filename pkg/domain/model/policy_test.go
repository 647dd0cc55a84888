package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/frappe/release/pkg/domain/model"
)

func TestPolicy_IgnoresTitle(t *testing.T) {
	policy := model.DefaultPolicy()

	gt.True(t, policy.IgnoresTitle("chore: bump deps"))
	gt.True(t, policy.IgnoresTitle("bump to v13"))
	gt.True(t, !policy.IgnoresTitle("feat: add X"))
	gt.True(t, !policy.IgnoresTitle(""))
}
