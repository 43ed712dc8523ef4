package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestAddMemberIdempotent(t *testing.T) {
	g := &Group{MemberLimit: 5}
	g.AddMember(Member{UID: "amy"})
	g.AddMember(Member{UID: "amy"})
	assert.Len(t, g.Members, 1)
}

func TestNormalizeProjectsMemberUIDs(t *testing.T) {
	g := &Group{
		MemberLimit: 5,
		Members:     []Member{{UID: "lea"}, {UID: "amy"}},
		MemberUIDs:  []string{"stale"},
	}
	g.Normalize()
	assert.Equal(t, []string{"lea", "amy"}, g.MemberUIDs)
}

func TestNormalizeStripsJoinedApplicants(t *testing.T) {
	g := &Group{
		MemberLimit: 5,
		Members:     []Member{{UID: "lea"}, {UID: "amy"}},
		Applicants:  []Applicant{{UID: "amy"}, {UID: "bob"}},
	}
	g.Normalize()
	assert.False(t, g.HasApplicant("amy"))
	assert.True(t, g.HasApplicant("bob"))
}

func TestNormalizeDelistsAtCapacity(t *testing.T) {
	g := &Group{
		MemberLimit: 2,
		Members:     []Member{{UID: "lea"}, {UID: "amy"}},
	}
	g.Normalize()
	assert.True(t, g.IsDelisted)
}

// Property: after Normalize, member_uids is exactly the member projection,
// no applicant overlaps the member list, and a full group is never listed.
func TestProperty_NormalizeInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property test in short mode")
	}

	rapid.Check(t, func(rt *rapid.T) {
		limit := rapid.IntRange(1, 8).Draw(rt, "limit")
		numMembers := rapid.IntRange(0, 8).Draw(rt, "numMembers")
		numApplicants := rapid.IntRange(0, 8).Draw(rt, "numApplicants")

		g := &Group{
			ID:          "g1",
			Activity:    "climbing",
			Title:       "session",
			MemberLimit: limit,
			CreatedBy:   "u0",
		}
		for i := 0; i < numMembers; i++ {
			g.AddMember(Member{UID: fmt.Sprintf("u%d", i)})
		}
		for i := 0; i < numApplicants; i++ {
			// 报名者区间故意与成员区间部分重叠
			uid := fmt.Sprintf("u%d", rapid.IntRange(0, 12).Draw(rt, fmt.Sprintf("applicant_%d", i)))
			g.Applicants = append(g.Applicants, Applicant{UID: uid})
		}

		g.Normalize()

		if len(g.MemberUIDs) != len(g.Members) {
			rt.Fatalf("member_uids length %d != members length %d", len(g.MemberUIDs), len(g.Members))
		}
		for i, m := range g.Members {
			if g.MemberUIDs[i] != m.UID {
				rt.Fatalf("member_uids[%d] = %s, want %s", i, g.MemberUIDs[i], m.UID)
			}
		}
		for _, a := range g.Applicants {
			if g.HasMember(a.UID) {
				rt.Fatalf("applicant %s is also a member", a.UID)
			}
		}
		if g.AtCapacity() && !g.IsDelisted {
			rt.Fatal("group at capacity must be delisted")
		}
	})
}
