// Package artifacts writes the annotated evidence images for an item and
// applies its outcome tag to the source file name.
//
// Artifacts land in <output_dir>/<relative dir>/<tag><stem>/. Best-of mode
// writes best_frame_detections and cropped_image; capture-all mode writes
// one annotated image per evidence frame. Every detection also gets a crop
// under crops/.
package artifacts
