// Package inbox provides private messaging between users of a web application.
//
// Every message is stored twice, once in the sender's inbox and once in the
// receiver's. Each copy records the other participant (the peer) so lists can
// be drawn without loading accounts. Conversations are the copies an owner
// holds with one peer.
//
// # Basic Usage
//
//	// Create in-memory store for testing
//	st := memory.New()
//
//	svc, err := inbox.NewService(
//	    inbox.WithStore(st),
//	    inbox.WithMailer(mailer),
//	    inbox.WithPusher(pusher),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Connect initializes indexes/schema
//	if err := svc.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close(ctx)
//
//	// Get an inbox client acting as alice
//	mb := svc.Client(alice)
//
//	// Send a message; bob is notified by email and push
//	res, err := mb.Send(ctx, bob, "Hello!", nil)
//
//	// First page of alice's inbox, newest first
//	msgs, err := mb.Inbox(ctx, inbox.InboxOptions{Page: inbox.Page(0)})
//
// # Operations
//
//   - Send: store a message for both participants and notify the receiver
//   - Inbox/InboxByID: list messages, optionally paged or for one conversation
//   - Conversations: one entry per peer with the latest message and a count
//   - Get: retrieve one message by ID
//   - Delete: remove one message copy
//   - Clear: remove every message and reset the unread counter
//
// # Storage Backends
//
// The store package provides implementations for:
//   - MongoDB (store/mongo) - accepts *mongo.Client
//   - PostgreSQL (store/postgres) - accepts *sql.DB
//   - In-memory (store/memory) - for testing
//
// # Notifications
//
// Email and push notifications go through the Mailer and Pusher interfaces.
// notify/redisstream implements both by queueing jobs on Redis Streams.
// Receivers who turned off new message notifications are skipped.
// Notification failures are logged unless WithNotificationErrorsFatal is set.
//
// # Events
//
// The service publishes typed events using github.com/rbaliyan/event/v3.
// To deliver them, pass WithRedisClient or WithEventTransport:
//
//	svc, err := inbox.NewService(
//	    inbox.WithStore(st),
//	    inbox.WithRedisClient(redisClient),
//	)
//
// Events are registered during Connect() and available from Events():
//   - MessageSent - after both copies of a message are stored
//   - MessageDeleted - when an owner deletes a message copy
//   - InboxCleared - when an owner clears their inbox
package inbox
