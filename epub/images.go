package epub

import (
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// imageNameFormat numbers images in manifest order.
const imageNameFormat = "%05d%s"

// Image is a manifest image renamed for the reassembled document.
type Image struct {
	// Name is the sequential file name referenced by the document, such as
	// "00001.jpg".
	Name      string
	Path      string
	MediaType string
	Data      []byte
}

// imageItems returns the manifest images in declaration order.
func (b *Book) imageItems() []ManifestItem {
	var out []ManifestItem
	for _, m := range b.manifest {
		if m.IsImage() {
			out = append(out, m)
		}
	}
	return out
}

// Images returns the raw bytes of every manifest image in declaration
// order, the same order Assemble numbers them in.
func (b *Book) Images() ([][]byte, error) {
	items := b.imageItems()
	out := make([][]byte, 0, len(items))
	for _, m := range items {
		data, err := b.arc.read(m.Path)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

// loadImages reads the manifest images and names them sequentially.
func (b *Book) loadImages() ([]Image, error) {
	items := b.imageItems()
	images := make([]Image, 0, len(items))
	for i, m := range items {
		data, err := b.arc.read(m.Path)
		if err != nil {
			return nil, fmt.Errorf("epub: image %s: %w", m.ID, err)
		}
		images = append(images, Image{
			Name:      fmt.Sprintf(imageNameFormat, i+1, imageExt(m)),
			Path:      m.Path,
			MediaType: m.MediaType,
			Data:      data,
		})
	}
	return images, nil
}

// renameImages points every img src and SVG image href in docs at the
// sequential name of the image it referenced. References to images that
// are not in the manifest are left alone.
func renameImages(docs []*document, images []Image) {
	names := make(map[string]string, len(images))
	for _, img := range images {
		names[img.Path] = img.Name
	}
	for _, d := range docs {
		walk(d.body, func(n *html.Node) {
			var keys []string
			switch n.DataAtom {
			case atom.Img:
				keys = []string{"src"}
			case atom.Image:
				keys = []string{"xlink:href", "href"}
			default:
				return
			}
			for _, k := range keys {
				v, ok := getAttr(n, k)
				if !ok || hasScheme(v) {
					continue
				}
				if name, ok := names[resolvePath(d.path, v)]; ok {
					setAttr(n, k, name)
				}
			}
		})
	}
}
