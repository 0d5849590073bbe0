package tools

import (
	"archive/zip"
	"io"

	"github.com/arthur-debert/kitman/pkg/errors"
	"github.com/beevik/etree"
)

const vsixManifestName = "extension.vsixmanifest"

// ExtensionID reads <Publisher>.<Id> from the manifest inside a .vsix.
func ExtensionID(vsix string) (string, error) {
	zr, err := zip.OpenReader(vsix)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrCorruptArchive, "open %s", vsix)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if f.Name != vsixManifestName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", errors.Wrapf(err, errors.ErrCorruptArchive, "read %s", vsixManifestName)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", errors.Wrapf(err, errors.ErrCorruptArchive, "read %s", vsixManifestName)
		}
		return parseExtensionID(data)
	}
	return "", errors.Newf(errors.ErrCorruptArchive, "%s has no %s", vsix, vsixManifestName)
}

func parseExtensionID(data []byte) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return "", errors.Wrap(err, errors.ErrCorruptArchive, "invalid extension manifest")
	}
	identity := doc.FindElement("//Metadata/Identity")
	if identity == nil {
		return "", errors.New(errors.ErrCorruptArchive, "extension manifest has no Identity")
	}
	id := identity.SelectAttrValue("Id", "")
	publisher := identity.SelectAttrValue("Publisher", "")
	if id == "" || publisher == "" {
		return "", errors.New(errors.ErrCorruptArchive, "extension manifest Identity lacks Id or Publisher")
	}
	return publisher + "." + id, nil
}
