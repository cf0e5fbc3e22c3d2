package models

import (
	"time"

	"gorm.io/datatypes"
)

// PushChannel selects the transport a registered device listens on.
type PushChannel string

const (
	PushChannelNative  PushChannel = "native"  // FCM device token
	PushChannelWebpush PushChannel = "webpush" // Web Push subscription
)

// DeviceToken is one push-capable endpoint registered by a user's device.
// Native rows carry the FCM registration token in Token; webpush rows carry
// the subscription endpoint in Token (it is unique per subscription) and the
// full subscription JSON in Subscription.
type DeviceToken struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	UID               string         `gorm:"size:128;index" json:"uid"`
	Channel           PushChannel    `gorm:"size:16;default:native" json:"channel"`
	Token             string         `gorm:"size:512;uniqueIndex" json:"token"`
	Subscription      datatypes.JSON `json:"subscription,omitempty"`
	DeviceInfo        string         `gorm:"size:256" json:"device_info,omitempty"`
	Enabled           bool           `gorm:"default:true" json:"enabled"`
	PermissionGranted bool           `gorm:"default:true" json:"permission_granted"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Reachable reports whether the row can currently receive a push.
func (t DeviceToken) Reachable() bool {
	if !t.Enabled || !t.PermissionGranted {
		return false
	}
	if t.Channel == PushChannelWebpush {
		return len(t.Subscription) > 0
	}
	return t.Token != ""
}
