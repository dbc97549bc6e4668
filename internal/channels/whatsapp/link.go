package whatsapp

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"
)

// LinkDevice performs QR code pairing for a new WhatsApp device.
// Displays the QR code in the terminal and waits for the user to scan it.
func LinkDevice(dbPath string) error {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer db.Close()

	container := sqlstore.NewWithDB(db, "sqlite3", &waLogger{module: "store"})
	if err := container.Upgrade(context.Background()); err != nil {
		return fmt.Errorf("failed to upgrade store: %w", err)
	}

	// Remove stale device entries from previous pairing attempts, or
	// the gateway would later pick up an invalidated session and 401.
	oldDevices, err := container.GetAllDevices(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list existing devices: %w", err)
	}
	for _, d := range oldDevices {
		jid := "(unknown)"
		if d.ID != nil {
			jid = d.ID.String()
		}
		fmt.Printf("Removing stale device: %s\n", jid)
		_ = d.Delete(context.Background())
	}

	device := container.NewDevice()
	client := whatsmeow.NewClient(device, &waLogger{module: "client"})

	// The QR "success" event only means the scan was accepted; the
	// client still needs the initial sync before disconnecting, or the
	// pairing is left incomplete.
	connectedCh := make(chan struct{}, 1)
	client.AddEventHandler(func(evt interface{}) {
		if _, ok := evt.(*events.Connected); ok {
			select {
			case connectedCh <- struct{}{}:
			default:
			}
		}
	})

	qrChan, err := client.GetQRChannel(context.Background())
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}

	if err := client.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	fmt.Println("Scan the QR code below with your WhatsApp app:")
	fmt.Println("  WhatsApp > Settings > Linked Devices > Link a Device")
	fmt.Println()

	for item := range qrChan {
		switch item.Event {
		case "code":
			qrterminal.GenerateHalfBlock(item.Code, qrterminal.L, os.Stdout)
			fmt.Println()
			fmt.Println("Waiting for scan...")
		case "success":
			fmt.Println("\nScan accepted, completing initial sync...")
			select {
			case <-connectedCh:
			case <-time.After(30 * time.Second):
				client.Disconnect()
				return fmt.Errorf("timed out waiting for initial sync - try again")
			}
			fmt.Printf("Paired successfully! JID: %s\n", client.Store.ID)
			fmt.Println("You can now start the bot with 'zapflow run'.")
			client.Disconnect()
			return nil
		case "timeout":
			client.Disconnect()
			return fmt.Errorf("QR code expired - run the command again")
		default:
			client.Disconnect()
			return fmt.Errorf("pairing failed: %s", item.Event)
		}
	}

	client.Disconnect()
	return fmt.Errorf("QR channel closed unexpectedly")
}
