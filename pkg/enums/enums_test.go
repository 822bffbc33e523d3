package enums

import "testing"

func TestReviewStatusFlagsRoundTrip(t *testing.T) {
	for _, status := range []ReviewStatus{ReviewStatusPending, ReviewStatusApproved, ReviewStatusRejected} {
		approved, rejected := status.Flags()
		if approved && rejected {
			t.Fatalf("%s produced both flags", status)
		}
		got, err := ReviewStatusFromFlags(approved, rejected)
		if err != nil {
			t.Fatalf("from flags: %v", err)
		}
		if got != status {
			t.Fatalf("expected %s, got %s", status, got)
		}
	}
}

func TestReviewStatusFromFlagsRejectsBothSet(t *testing.T) {
	if _, err := ReviewStatusFromFlags(true, true); err == nil {
		t.Fatal("expected error when both flags are set")
	}
}

func TestOnlyApprovedIsCounted(t *testing.T) {
	if !ReviewStatusApproved.Counted() {
		t.Fatal("approved reviews count toward the total")
	}
	if ReviewStatusPending.Counted() || ReviewStatusRejected.Counted() {
		t.Fatal("pending and rejected reviews must not count")
	}
}

func TestParseReviewFilter(t *testing.T) {
	f, err := ParseReviewFilter("")
	if err != nil || f != ReviewFilterAll {
		t.Fatalf("expected all for blank filter, got %q %v", f, err)
	}
	if _, ok := f.Status(); ok {
		t.Fatal("all filter should not select a status")
	}
	f, err = ParseReviewFilter("Pending")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if status, ok := f.Status(); !ok || status != ReviewStatusPending {
		t.Fatalf("expected pending status, got %q", status)
	}
	if _, err := ParseReviewFilter("spam"); err == nil {
		t.Fatal("expected invalid filter error")
	}
}

func TestRoleDomains(t *testing.T) {
	if RoleAdmin.Domain() != SessionDomainAdmin {
		t.Fatal("admin role belongs to admin domain")
	}
	for _, role := range []Role{RoleParent, RoleNurseryOwner, RoleUser} {
		if role.Domain() != SessionDomainUser {
			t.Fatalf("%s should belong to the user domain", role)
		}
		if SessionDomainAdmin.Allows(role) {
			t.Fatalf("admin domain must not allow %s", role)
		}
	}
	if SessionDomainUser.Allows(RoleAdmin) {
		t.Fatal("user domain must not allow admins")
	}
	if SessionDomainAdmin.LoginPath() != "/admin-login" || SessionDomainUser.LoginPath() != "/nursery-login" {
		t.Fatal("unexpected login paths")
	}
}

func TestParseRoleIsCaseInsensitive(t *testing.T) {
	role, err := ParseRole(" nursery_owner ")
	if err != nil || role != RoleNurseryOwner {
		t.Fatalf("expected NURSERY_OWNER, got %q %v", role, err)
	}
	if RoleAdmin.SelfRegistrable() {
		t.Fatal("admins cannot self-register")
	}
}
