package epub

import (
	"encoding/xml"
	"strings"
)

const (
	encryptionPath = "META-INF/encryption.xml"
	fairPlayPath   = "META-INF/sinf.xml"
)

// fontObfuscation lists the encryption algorithms that only mangle embedded
// fonts and do not protect the text.
var fontObfuscation = map[string]bool{
	"http://www.idpf.org/2008/embedding": true,
	"http://ns.adobe.com/pdf/enc#RC":     true,
}

type encryptionDoc struct {
	XMLName xml.Name `xml:"encryption"`
	Data    []struct {
		Method struct {
			Algorithm string `xml:"Algorithm,attr"`
		} `xml:"EncryptionMethod"`
	} `xml:"EncryptedData"`
}

// checkDRM inspects the encryption descriptors of the archive. It returns
// obfuscated=true when only fonts are obfuscated, and ErrDRMProtected for
// FairPlay, an unreadable descriptor or any other encrypted entry.
func checkDRM(a *archive) (obfuscated bool, err error) {
	if a.find(fairPlayPath) != nil {
		return false, ErrDRMProtected
	}
	f := a.find(encryptionPath)
	if f == nil {
		return false, nil
	}
	data, err := readEntry(f, maxEntrySize)
	if err != nil {
		return false, err
	}

	var enc encryptionDoc
	if err := xml.Unmarshal(stripBOM(data), &enc); err != nil {
		return false, ErrDRMProtected
	}
	for _, d := range enc.Data {
		if !fontObfuscation[strings.TrimSpace(d.Method.Algorithm)] {
			return false, ErrDRMProtected
		}
		obfuscated = true
	}
	return obfuscated, nil
}
