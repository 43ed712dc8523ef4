package logger_test

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/squadup/squadup/config"
	logger "github.com/squadup/squadup/middleware/log"
)

// Example_basicUsage demonstrates basic logger usage
func Example_basicUsage() {
	// Create logger from configuration
	cfg := &config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Log messages at different levels
	log.Debug("This is a debug message")
	log.Info("Application started")
	log.Warn("This is a warning")
	log.Error("An error occurred", zap.Error(fmt.Errorf("example error")))
}

// Example_withTraceID demonstrates trace ID usage
func Example_withTraceID() {
	log, _ := logger.NewDevelopmentLogger()
	defer log.Sync()

	// Generate a new trace ID
	traceID := logger.NewTraceID()

	// Create logger with trace ID
	logWithTrace := log.WithTraceID(traceID)
	logWithTrace.Info("Processing group application")
	logWithTrace.Info("Application recorded")
}

// Example_contextAware demonstrates context-aware logging
func Example_contextAware() {
	log, _ := logger.NewDevelopmentLogger()
	defer log.Sync()

	// Create context with trace ID
	ctx := logger.WithTraceID(context.Background(), "trace-123")

	// Log with context - trace ID is automatically included
	log.InfoContext(ctx, "User logged in",
		zap.String("uid", "user123"),
		zap.String("ip", "192.168.1.1"))

	log.InfoContext(ctx, "User action performed",
		zap.String("action", "create_group"))
}

// Example_structuredFields demonstrates structured logging
func Example_structuredFields() {
	log, _ := logger.NewDevelopmentLogger()
	defer log.Sync()

	// Log with structured fields
	log.Info("Invitation sent",
		zap.String("invitation_id", "inv123"),
		zap.String("receiver_uid", "user456"),
		zap.String("group_id", "group789"),
		zap.Int("co_invitees", 2),
		zap.Duration("latency", 50))
}

// Example_persistentFields demonstrates creating a logger with persistent fields
func Example_persistentFields() {
	log, _ := logger.NewDevelopmentLogger()
	defer log.Sync()

	// Create a logger with persistent fields for a specific group
	groupLog := log.WithFields(
		zap.String("group_id", "group123"),
		zap.String("leader_uid", "user456"))

	// All subsequent logs will include these fields
	groupLog.Info("Group action: member applied")
	groupLog.Info("Group action: applicant invited")
	groupLog.Info("Group action: delisted at capacity")
}

// Example_httpMiddleware demonstrates logger usage in HTTP middleware
func Example_httpMiddleware() {
	log, _ := logger.NewDevelopmentLogger()
	defer log.Sync()

	// Simulate HTTP request handling
	ctx := context.Background()

	// Generate trace ID for the request
	traceID := logger.NewTraceID()
	ctx = logger.WithTraceID(ctx, traceID)

	// Log request start
	log.InfoContext(ctx, "Request received",
		zap.String("method", "POST"),
		zap.String("path", "/api/v1/groups"))

	// Process request...

	// Log request completion
	log.InfoContext(ctx, "Request completed",
		zap.Int("status", 200),
		zap.Duration("latency", 45))
}

// Example_errorHandling demonstrates error logging
func Example_errorHandling() {
	log, _ := logger.NewDevelopmentLogger()
	defer log.Sync()

	ctx := logger.WithTraceID(context.Background(), "trace-456")

	// Simulate a partially applied fan-out
	err := fmt.Errorf("chat channel update failed")

	// Log error with context
	log.ErrorContext(ctx, "Disband fan-out incomplete",
		zap.Error(err),
		zap.String("group_id", "group456"),
		zap.String("step", "delete-chat"),
		zap.Strings("completed", []string{"notify-members"}))
}

// Example_serviceLayer demonstrates logger usage in service layer
func Example_serviceLayer() {
	log, _ := logger.NewDevelopmentLogger()
	defer log.Sync()

	// Create a service-specific logger
	membershipLog := log.WithFields(zap.String("service", "membership"))

	ctx := logger.WithTraceID(context.Background(), "trace-789")

	// Log service operations
	membershipLog.InfoContext(ctx, "Group creation started",
		zap.String("leader_uid", "user123"))

	// Simulate validation
	membershipLog.DebugContext(ctx, "Validating member limit")

	// Simulate success
	membershipLog.InfoContext(ctx, "Group created",
		zap.String("group_id", "group123"))
}
