package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/model"
)

func strPtr(s string) *string { return &s }

func menuReport() *model.Report {
	return &model.Report{
		Pages: []model.Page{
			{
				Name: "Campaign", NavigationFunctionCount: 1,
				OutgoingCalls: []model.NavCall{
					{SourcePage: "Campaign", Callee: "SetPageStack", Target: strPtr("Main"), Resolved: true, ResolvedTarget: "Main"},
				},
				Incoming: []string{"Main"}, Outgoing: []string{"Main"},
			},
			{
				Name: "Main", NavigationFunctionCount: 3,
				Buttons: []model.ButtonRef{{Name: "Main_MP"}},
				OutgoingCalls: []model.NavCall{
					{SourcePage: "Main", Callee: "gotoMP", Kind: model.Definition, Target: strPtr("MPLoading"), Resolved: true, ResolvedTarget: "MPLoading"},
					{SourcePage: "Main", Callee: "PushPageStack", Target: strPtr("Campaign"), Resolved: true, ResolvedTarget: "Campaign"},
				},
				Incoming: []string{"Campaign"}, Outgoing: []string{"Campaign", "MPLoading"},
			},
			{
				Name: "MPLoading", NavigationFunctionCount: 1,
				Incoming: []string{"Main"}, Outgoing: []string{},
			},
			{Name: "Options", NavigationFunctionCount: 0},
		},
	}
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    []string // page:field:value
	}{
		{"Callee", "goto", []string{"Main:callee:gotoMP"}},
		{"CaseInsensitive", "GOTOmp", []string{"Main:callee:gotoMP"}},
		{"PageAndTarget", "campaign", []string{"Campaign:page:Campaign", "Campaign:source:Campaign", "Main:target:Campaign"}},
		{"Button", "main_m", []string{"Main:button:Main_MP"}},
		{"Nothing", "nonexistent_xyz", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := Search(menuReport(), tt.pattern)
			require.NotNil(t, hits)

			var got []string
			for _, h := range hits {
				got = append(got, h.Page+":"+h.Field+":"+h.Value)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSearch_CarriesCall(t *testing.T) {
	hits := Search(menuReport(), "gotomp")
	require.Len(t, hits, 1)
	require.NotNil(t, hits[0].Call)
	assert.Equal(t, model.Definition, hits[0].Call.Kind)
}

func TestLookup(t *testing.T) {
	r := menuReport()

	page, ok := Lookup(r, "Main")
	require.True(t, ok)
	assert.Len(t, page.OutgoingCalls, 2)

	_, ok = Lookup(r, "main")
	assert.False(t, ok, "lookup is exact")
	_, ok = Lookup(r, "Credits")
	assert.False(t, ok)
}

func TestList(t *testing.T) {
	tests := []struct {
		sort string
		want []string
	}{
		{SortName, []string{"Campaign", "MPLoading", "Main", "Options"}},
		{"", []string{"Campaign", "MPLoading", "Main", "Options"}},
		// Campaign and MPLoading tie on one function each
		{SortFunctions, []string{"Main", "Campaign", "MPLoading", "Options"}},
		// Main 3, Campaign 2, MPLoading 1, Options 0
		{SortConnections, []string{"Main", "Campaign", "MPLoading", "Options"}},
	}

	for _, tt := range tests {
		t.Run("sort="+tt.sort, func(t *testing.T) {
			entries, err := List(menuReport(), tt.sort)
			require.NoError(t, err)

			var names []string
			for _, e := range entries {
				names = append(names, e.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestList_Ties(t *testing.T) {
	r := &model.Report{Pages: []model.Page{{Name: "Zeta"}, {Name: "Alpha"}, {Name: "Mid", NavigationFunctionCount: 2}}}

	entries, err := List(r, SortFunctions)
	require.NoError(t, err)
	assert.Equal(t, "Mid", entries[0].Name)
	assert.Equal(t, "Alpha", entries[1].Name)
	assert.Equal(t, "Zeta", entries[2].Name)
}

func TestList_UnknownSort(t *testing.T) {
	_, err := List(menuReport(), "buttons")
	assert.Error(t, err)
}
