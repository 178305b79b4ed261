package access

import (
	"testing"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func regularUser(id string) *domain.User {
	return &domain.User{ID: id, Role: domain.RoleRegular}
}

func employee(id string) *domain.User {
	return &domain.User{ID: id, Role: domain.RoleEmployee}
}

func TestCanViewTicket(t *testing.T) {
	ticket := &domain.Ticket{ID: "t1", CreatorID: "creator"}

	tests := []struct {
		name string
		user *domain.User
		want bool
	}{
		{"creator views own ticket", regularUser("creator"), true},
		{"other regular user denied", regularUser("stranger"), false},
		{"employee views any ticket", employee("agent"), true},
		{"employee creator still allowed", employee("creator"), true},
		{"nil user denied", nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanViewTicket(tc.user, ticket); got != tc.want {
				t.Errorf("CanViewTicket() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanModifyTicket(t *testing.T) {
	ticket := &domain.Ticket{ID: "t1", CreatorID: "creator"}

	if CanModifyTicket(regularUser("creator"), ticket) {
		t.Error("regular creator must not modify status/priority/assignment")
	}
	if !CanModifyTicket(employee("agent"), ticket) {
		t.Error("employee must be allowed to modify any ticket")
	}
	if CanModifyTicket(nil, ticket) {
		t.Error("nil user must not modify")
	}
}

func TestCanMarkInternalAndSelfAssign(t *testing.T) {
	if CanMarkInternal(regularUser("u1")) {
		t.Error("regular user must not mark comments internal")
	}
	if !CanMarkInternal(employee("e1")) {
		t.Error("employee must be able to mark comments internal")
	}
	if CanSelfAssign(regularUser("u1")) {
		t.Error("regular user must not self-assign")
	}
	if !CanSelfAssign(employee("e1")) {
		t.Error("employee must be able to self-assign")
	}
}

func TestVisibleComments(t *testing.T) {
	comments := []domain.Comment{
		{ID: "c1", Internal: false},
		{ID: "c2", Internal: true},
		{ID: "c3", Internal: false},
		{ID: "c4", Internal: true},
	}

	forEmployee := VisibleComments(employee("e1"), comments)
	if len(forEmployee) != 4 {
		t.Fatalf("employee should see all 4 comments, got %d", len(forEmployee))
	}

	// The ticket creator is still a regular user; internal stays hidden.
	forCreator := VisibleComments(regularUser("creator"), comments)
	if len(forCreator) != 2 {
		t.Fatalf("regular user should see 2 comments, got %d", len(forCreator))
	}
	for _, comment := range forCreator {
		if comment.Internal {
			t.Errorf("internal comment %s leaked to regular user", comment.ID)
		}
	}
}

func TestVisibleCommentsEmpty(t *testing.T) {
	got := VisibleComments(regularUser("u1"), nil)
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d", len(got))
	}
}
