// Package manifest models the layer tree returned by the image-editing
// service and extracts translatable text layers from it.
package manifest

// maxDepth bounds the traversal so a malformed manifest with circular
// children cannot recurse forever. Real documents nest far shallower.
const maxDepth = 256

// TypeTextLayer is the type tag of a translatable leaf layer.
const TypeTextLayer = "textLayer"

// TextInfo carries the string content of a text layer.
type TextInfo struct {
	Content string `json:"content"`
}

// LayerNode is one node of the document layer tree. A node with type
// "textLayer" carries text; a group node carries children. The model allows
// a node to be both, and the walker handles that, although in practice the
// two roles are disjoint.
type LayerNode struct {
	Type     string      `json:"type"`
	Name     string      `json:"name"`
	Text     *TextInfo   `json:"text,omitempty"`
	Children []LayerNode `json:"children,omitempty"`
}

// Document is the manifest output entry describing one document's layers.
type Document struct {
	Layers []LayerNode `json:"layers"`
}

// FindTextLayers returns every text layer reachable from root, depth-first
// in pre-order. That order is load-bearing: the translated layer list is
// written back positionally, so callers depend on it being the document
// order. A nil or empty layer list yields an empty result, not an error.
func FindTextLayers(root []LayerNode) []LayerNode {
	var found []LayerNode
	collectTextLayers(root, 0, &found)
	return found
}

func collectTextLayers(layers []LayerNode, depth int, found *[]LayerNode) {
	if depth >= maxDepth {
		return
	}
	for _, layer := range layers {
		if layer.Type == TypeTextLayer {
			*found = append(*found, layer)
		}
		// Recurse regardless of whether the node itself was emitted.
		if len(layer.Children) > 0 {
			collectTextLayers(layer.Children, depth+1, found)
		}
	}
}
