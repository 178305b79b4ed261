package main

import (
	"context"
	"log"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// Seeds a development database with a known set of accounts, tickets and
// comments. Destructive: wipes existing rows first.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	pool := pg.PoolHandle()
	users := repository.NewUserRepository(pool)
	tickets := repository.NewTicketRepository(pool)
	comments := repository.NewCommentRepository(pool)

	logger.Info("clearing existing data")
	if err := comments.DeleteAll(ctx); err != nil {
		logger.Fatal("failed to clear comments", zap.Error(err))
	}
	if err := tickets.DeleteAll(ctx); err != nil {
		logger.Fatal("failed to clear tickets", zap.Error(err))
	}
	if err := users.DeleteAll(ctx); err != nil {
		logger.Fatal("failed to clear users", zap.Error(err))
	}

	admin := seedUser(ctx, logger, users, cfg.Auth.BcryptCost, "admin", "admin@ticketdesk.com", "admin123", domain.RoleEmployee)
	employee1 := seedUser(ctx, logger, users, cfg.Auth.BcryptCost, "employee1", "employee1@ticketdesk.com", "employee123", domain.RoleEmployee)
	user1 := seedUser(ctx, logger, users, cfg.Auth.BcryptCost, "user1", "user1@example.com", "user1234", domain.RoleRegular)

	logger.Info("creating sample tickets")
	ticket1 := seedTicket(ctx, logger, tickets, &domain.Ticket{
		Title:       "Login page not loading",
		Description: "When I try to access the login page, I get a 404 error. This has been happening since yesterday.",
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityHigh,
		CreatorID:   user1.ID,
	})
	ticket2 := seedTicket(ctx, logger, tickets, &domain.Ticket{
		Title:       "Dashboard shows incorrect data",
		Description: "The dashboard displays wrong statistics. The total count is showing 0 even though I have multiple tickets.",
		Status:      domain.TicketStatusInProgress,
		Priority:    domain.TicketPriorityMedium,
		CreatorID:   user1.ID,
		AssigneeID:  &employee1.ID,
	})
	seedTicket(ctx, logger, tickets, &domain.Ticket{
		Title:       "Feature request: Email notifications",
		Description: "It would be great to receive email notifications when there are updates on my tickets.",
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityLow,
		CreatorID:   user1.ID,
	})
	ticket4 := seedTicket(ctx, logger, tickets, &domain.Ticket{
		Title:       "Cannot upload attachments",
		Description: "The file upload button is not working. I tried uploading a screenshot but nothing happens.",
		Status:      domain.TicketStatusResolved,
		Priority:    domain.TicketPriorityUrgent,
		CreatorID:   user1.ID,
		AssigneeID:  &admin.ID,
	})

	logger.Info("creating comments")
	seedComment(ctx, logger, comments, ticket1.ID, user1.ID,
		"I also noticed this happens on different browsers (Chrome and Firefox).")
	seedComment(ctx, logger, comments, ticket2.ID, employee1.ID,
		"I am looking into this issue. It seems to be a caching problem.")
	seedComment(ctx, logger, comments, ticket2.ID, user1.ID,
		"Thanks for the quick response! Please let me know if you need any additional information.")
	seedComment(ctx, logger, comments, ticket4.ID, admin.ID,
		"This has been fixed in the latest update. Please try again and let me know if the issue persists.")
	seedComment(ctx, logger, comments, ticket4.ID, user1.ID,
		"Confirmed working now. Thank you!")

	logger.Info("seed data created",
		zap.String("admin", "admin@ticketdesk.com / admin123"),
		zap.String("employee", "employee1@ticketdesk.com / employee123"),
		zap.String("regular", "user1@example.com / user1234"),
		zap.Int("tickets", 4),
		zap.Int("comments", 5),
	)
}

func seedUser(ctx context.Context, logger *zap.Logger, repo repository.UserRepository, bcryptCost int, name, email, password string, role domain.Role) *domain.User {
	hash, err := auth.HashPassword(password, bcryptCost)
	if err != nil {
		logger.Fatal("failed to hash password", zap.String("email", email), zap.Error(err))
	}
	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := repo.Create(ctx, user); err != nil {
		logger.Fatal("failed to create user", zap.String("email", email), zap.Error(err))
	}
	logger.Info("created user", zap.String("email", email), zap.String("role", string(role)))
	return user
}

func seedTicket(ctx context.Context, logger *zap.Logger, repo repository.TicketRepository, ticket *domain.Ticket) *domain.Ticket {
	ticket.ID = uuid.NewString()
	if err := repo.Create(ctx, ticket); err != nil {
		logger.Fatal("failed to create ticket", zap.String("title", ticket.Title), zap.Error(err))
	}
	return ticket
}

func seedComment(ctx context.Context, logger *zap.Logger, repo repository.CommentRepository, ticketID, authorID, body string) {
	comment := &domain.Comment{
		ID:       uuid.NewString(),
		TicketID: ticketID,
		AuthorID: authorID,
		Body:     body,
	}
	if err := repo.Create(ctx, comment); err != nil {
		logger.Fatal("failed to create comment", zap.Error(err))
	}
}
