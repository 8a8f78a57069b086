package models

import "time"

// These structs define the JSON payloads exchanged between the landing page and the
// landing-page function.

// Screen names returned to the page. The page renders whichever screen it is told to.
const (
	ScreenWelcome    = "welcome"
	ScreenProfile    = "profile"
	ScreenConfirm    = "confirm"
	ScreenDisclaimer = "disclaimer"
)

// QRLocationRequest is the body of step 1.
type QRLocationRequest struct {
	QRLocation string `json:"qrLocation"`
	Consent    bool   `json:"consent"`
}

// ProfileRequest is the body of step 2.
type ProfileRequest struct {
	AgeRange      string `json:"ageRange"`
	Gender        string `json:"gender"`
	BirthProvince string `json:"birthProvince"`
	Education     string `json:"education"`
}

// ConfirmRequest is the body of step 3. The email is checked for presence and discarded.
type ConfirmRequest struct {
	Email string `json:"email"`
}

// CollectedField is one line of the "what you shared" table on the disclaimer screen.
type CollectedField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ScreenResponse tells the page which screen to show next.
type ScreenResponse struct {
	SessionID string           `json:"sessionId"`
	Screen    string           `json:"screen"`
	Step      int              `json:"step"`
	Progress  int              `json:"progress"`
	Collected []CollectedField `json:"collected,omitempty"`
}

// SessionExport is the downloadable JSON report of a session.
type SessionExport struct {
	Record
	ExportedAt time.Time `json:"exported_at"`
	Note       string    `json:"note"`
}
