package modalities

// sopClassUIDs maps each modality to its image storage SOP class.
var sopClassUIDs = map[Modality]string{
	CR: "1.2.840.10008.5.1.4.1.1.1",     // Computed Radiography Image Storage
	CT: "1.2.840.10008.5.1.4.1.1.2",     // CT Image Storage
	MR: "1.2.840.10008.5.1.4.1.1.4",     // MR Image Storage
	US: "1.2.840.10008.5.1.4.1.1.6.1",   // Ultrasound Image Storage
	DX: "1.2.840.10008.5.1.4.1.1.1.1",   // Digital X-Ray Image Storage
	NM: "1.2.840.10008.5.1.4.1.1.20",    // Nuclear Medicine Image Storage
	PT: "1.2.840.10008.5.1.4.1.1.128",   // Positron Emission Tomography Image Storage
	RF: "1.2.840.10008.5.1.4.1.1.6",     // Radiofluoroscopic Image Storage
	SC: "1.2.840.10008.5.1.4.1.1.7",     // Secondary Capture Image Storage
	MG: "1.2.840.10008.5.1.4.1.1.1.2",   // Mammography Image Storage
	XA: "1.2.840.10008.5.1.4.1.1.12.1",  // X-Ray Angiographic Image Storage
	XC: "1.2.840.10008.5.1.4.1.1.1.3",   // External Camera Photography Storage
}

// SOPClassFor returns the storage SOP class UID for a modality code.
// Unknown codes fall back to the Computed Radiography storage class.
func SOPClassFor(modality string) string {
	if uid, ok := sopClassUIDs[Modality(modality)]; ok {
		return uid
	}
	return sopClassUIDs[CR]
}
