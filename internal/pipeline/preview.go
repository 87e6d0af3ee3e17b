package pipeline

import "fmt"

// reloadBootstrap is attached to every promoted build. It listens on the
// engine's reload stream and re-links the side module into the running
// session without restarting the main module.
const reloadBootstrap = `(function () {
  'use strict';

  var buildId = document.currentScript && document.currentScript.dataset.buildId;
  if (!buildId) {
    return;
  }

  function relink() {
    if (!window.Module || !Module.loadDynamicLibrary) {
      return;
    }
    var url = 'game.wasm?t=' + Date.now();
    Module.loadDynamicLibrary(url, { loadAsync: true, global: true, nodelete: true })
      .then(function () {
        if (typeof Module._on_hot_reload === 'function') {
          Module._on_hot_reload();
        }
        console.log('[reload] side module relinked');
      })
      .catch(function (err) {
        console.error('[reload] relink failed', err);
      });
  }

  var source = new EventSource('/api/reload/events');
  source.onmessage = function (msg) {
    try {
      var ev = JSON.parse(msg.data);
      if (ev.type === 'hot-reload-ready' && ev.targetJobId === buildId) {
        relink();
      }
    } catch (err) {
      // ignore malformed frames
    }
  };
})();
`

// previewHarness renders the canvas shell that loads a build's main module in
// the browser.
func previewHarness(jobID string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Build %s</title>
  <style>
    html, body { margin: 0; background: #000; height: 100%%; }
    #canvas { display: block; margin: 0 auto; }
  </style>
</head>
<body>
  <canvas id="canvas" width="640" height="480" tabindex="0"></canvas>
  <script>
    var Module = {
      canvas: document.getElementById('canvas'),
      print: function (text) { console.log(text); },
      printErr: function (text) { console.error(text); }
    };
  </script>
  <script src="%s"></script>
  <script src="reload.js" data-build-id="%s"></script>
</body>
</html>
`, jobID, MainArtifact, jobID)
}
