// Package modalities enumerates the DICOM imaging modalities the
// synthesizer can produce and maps each one to its storage SOP class.
package modalities

// Modality represents a DICOM imaging modality type.
type Modality string

const (
	CR Modality = "CR" // Computed Radiography
	CT Modality = "CT" // Computed Tomography
	MR Modality = "MR" // Magnetic Resonance
	US Modality = "US" // Ultrasound
	DX Modality = "DX" // Digital Radiography
	NM Modality = "NM" // Nuclear Medicine
	PT Modality = "PT" // Positron Emission Tomography
	RF Modality = "RF" // Radiofluoroscopy
	SC Modality = "SC" // Secondary Capture
	MG Modality = "MG" // Mammography
	XA Modality = "XA" // X-Ray Angiography
	XC Modality = "XC" // External Camera Photography
)

// AllModalities returns all supported modalities.
func AllModalities() []Modality {
	return []Modality{CR, CT, MR, US, DX, NM, PT, RF, SC, MG, XA, XC}
}

// IsValid checks if a modality string is valid.
func IsValid(m string) bool {
	for _, valid := range AllModalities() {
		if string(valid) == m {
			return true
		}
	}
	return false
}

// Names returns the supported modality codes as plain strings, in the
// same order as AllModalities.
func Names() []string {
	all := AllModalities()
	names := make([]string, len(all))
	for i, m := range all {
		names[i] = string(m)
	}
	return names
}
