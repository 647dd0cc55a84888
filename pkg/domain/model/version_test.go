package model_test

import (
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/frappe/release/pkg/domain/model"
	"github.com/frappe/release/pkg/domain/types"
)

func TestPlanNextVersion(t *testing.T) {
	tests := []struct {
		name        string
		tag         string
		releaseType model.ReleaseType
		want        string
		wantErr     bool
	}{
		{name: "major bump", tag: "1.2.3", releaseType: model.ReleaseTypeMajor, want: "2.0.0"},
		{name: "minor bump", tag: "1.2.3", releaseType: model.ReleaseTypeMinor, want: "1.3.0"},
		{name: "patch bump", tag: "1.2.3", releaseType: model.ReleaseTypePatch, want: "1.2.4"},
		{name: "leading v stripped", tag: "v1.2.0", releaseType: model.ReleaseTypePatch, want: "1.2.1"},
		{name: "major clears prerelease", tag: "2.0.0-beta.4", releaseType: model.ReleaseTypeMajor, want: "3.0.0"},
		{name: "patch clears prerelease", tag: "2.0.0-beta.4", releaseType: model.ReleaseTypePatch, want: "2.0.0"},
		{name: "beta increments suffix", tag: "13.0.0-beta.6", releaseType: model.ReleaseTypeBeta, want: "13.0.0-beta.7"},
		{name: "beta multi digit suffix", tag: "13.0.0-beta.19", releaseType: model.ReleaseTypeBeta, want: "13.0.0-beta.20"},
		{name: "beta without prerelease", tag: "13.0.0", releaseType: model.ReleaseTypeBeta, wantErr: true},
		{name: "beta non-numeric suffix", tag: "13.0.0-rc", releaseType: model.ReleaseTypeBeta, wantErr: true},
		{name: "unparseable tag", tag: "not-a-version", releaseType: model.ReleaseTypePatch, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := model.PlanNextVersion(tt.tag, tt.releaseType)
			if tt.wantErr {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err)
			gt.Value(t, got).Equal(tt.want)
		})
	}
}

func TestPlanNextVersion_NoTag(t *testing.T) {
	_, err := model.PlanNextVersion("", model.ReleaseTypePatch)
	gt.Error(t, err)
	gt.True(t, types.IsNoTagFound(err))
}

func TestPlanNextVersion_Deterministic(t *testing.T) {
	first, err := model.PlanNextVersion("v1.2.0", model.ReleaseTypeMinor)
	gt.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := model.PlanNextVersion("v1.2.0", model.ReleaseTypeMinor)
		gt.NoError(t, err)
		gt.Value(t, again).Equal(first)
	}
}
